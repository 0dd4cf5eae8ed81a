// Package workflow drives disc images through the preload, scan and convert
// stages.
//
// A Pipeline runs each stage over the whole worklist with bounded
// parallelism and waits for every item before the next stage starts. Scan
// output flows into convert; a failure is scoped to the item (or title) that
// produced it and never stops siblings or later stages. The Report returned
// by Run records every item's outcome per stage for the summary table, the
// history ledger and the process exit code.
package workflow
