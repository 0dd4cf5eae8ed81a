// Package notifications delivers run events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Enumerated event
// types cover run start, run completion, and per-item failures so the
// pipeline emits consistent messages without duplicating HTTP glue.
package notifications
