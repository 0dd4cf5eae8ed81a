// Package preflight provides readiness checks for the tools and filesystem
// paths a conversion run depends on.
//
// These checks run in two contexts:
//   - The run command calls RunAll before the first stage and refuses to
//     start when a required check fails, so a doomed batch is caught before
//     hours of encoding.
//   - The CLI "isoconvert check" command renders every result as a table.
//
// Free-space checks only warn: HandBrake output size is not known upfront.
package preflight
