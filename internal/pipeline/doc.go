// Package pipeline runs one end-to-end build: acquire secrets, fetch the repository,
// drive the build tool through its steps, publish the docs and build state, and
// record the outcome.
//
// Every fatal condition stops the run at once and is returned as a typed error
// together with the partial RunSummary, so the caller can emit diagnostics and the
// steps attempted so far before exiting non-zero.
package pipeline
