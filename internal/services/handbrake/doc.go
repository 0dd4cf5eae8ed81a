// Package handbrake wraps HandBrakeCLI: a title scan of a disc image and the
// per-title encode. Presets and extra flags are passed through untouched.
package handbrake
