// Package watcher re-runs a function whenever one of a fixed set of files changes.
//
// Parent directories are watched rather than the files themselves so that
// editors which replace a file through rename are still observed. Bursts of
// events are debounced and runs never overlap; a change that arrives during a
// run schedules exactly one follow-up run.
package watcher
