// Package workspace manages the directory a run clones into, supporting both
// ephemeral and persistent modes.
//
// Ephemeral mode creates a unique directory (e.g. dbtrunner-1a2b3c4d) that is removed
// when the run ends. Persistent mode reuses a fixed directory so the last clone can be
// inspected after the run; the fetcher still deletes the clone destination before
// every fetch, so nothing carries over between runs.
package workspace
