// Package services defines shared utilities consumed by the pipeline stages
// and the clients of external tools.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, disc image paths, stage
//     names, and title ordinals for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (failed, timeout, skipped) without string matching.
//
// Tool clients live in subpackages (handbrake, player) and share the process
// runner from internal/process.
package services
