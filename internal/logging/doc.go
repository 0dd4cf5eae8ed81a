// Package logging assembles structured slog loggers and formatting helpers used
// across isoconvert.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code automatically tags
// log lines with the run identifier, disc image, stage, and title ordinal.
// Every handler serializes writes, so lines emitted by concurrently running
// items never interleave mid-line.
package logging
