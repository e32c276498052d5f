// Package workspace resolves paths against the orchestrator root and owns the
// filesystem side effects of a run: the advisory run lock and the config copy.
package workspace
