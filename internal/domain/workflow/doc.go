// Package workflow holds the staged-workflow model: stages, tasks, timers,
// row change events and the pure functions over them (Reduce, Dedup,
// Summarize, View). Nothing here performs I/O.
package workflow
