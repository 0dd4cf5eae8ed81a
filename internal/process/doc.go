// Package process supervises external command-line tools.
//
// A Runner starts one executable in its own process group, streams its
// stdout and stderr line by line to a single callback, enforces an optional
// wall-clock timeout by killing the whole group, and reports how the process
// ended as an Outcome. Interpreting exit codes is left to callers: the
// player preload treats a timeout as success while the encoder treats any
// non-zero code as failure.
package process
