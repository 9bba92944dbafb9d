// Package logging provides the leveled logger used across vidcanvas.
//
// Levels, lowest first:
//   - DEBUG: per-tick and per-frame detail
//   - INFO: stage transitions and results
//   - WARN: recoverable conditions (skipped render targets, late frames)
//   - ERROR: failed operations
//
// The level comes from DEBUG (truthy) or LOG_LEVEL, and may be overridden
// with SetLevel. Level tags are colored when stdout is a terminal.
package logging
