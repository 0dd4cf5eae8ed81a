// Package history persists run reports in a local SQLite ledger.
//
// Each pipeline run is stored as one row in runs, with one stage_results row
// per item and stage and one titles row per encoded title. The ledger is
// append-only apart from Clear; `isoconvert history` reads it back.
package history
