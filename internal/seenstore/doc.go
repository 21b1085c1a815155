// Package seenstore persists which listings have already been notified.
//
// A record is keyed by (source, item id) and carries the first-seen time.
// Records survive restarts; a MarkSeen that returned nil is durable even if
// the process crashes right after.
package seenstore
