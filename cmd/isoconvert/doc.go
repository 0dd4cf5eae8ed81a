// Package main hosts the isoconvert CLI.
//
// The Cobra command tree loads configuration once, builds the logger, and
// hands off to the internal packages: run drives the three-stage pipeline,
// scan lists titles without converting, check runs the preflight, and
// history reads the SQLite ledger. Commands stay thin; behaviour belongs in
// internal/.
package main
