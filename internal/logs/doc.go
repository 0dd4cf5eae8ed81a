// Package logs reads the isoconvert log file for the `logs` command.
//
// Last returns the trailing lines with bounded memory; Follow polls for lines
// appended afterwards until its context ends, which is how `logs -f` watches
// a run from another terminal.
package logs
