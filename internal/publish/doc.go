// Package publish copies verified build output to durable storage.
//
// Documentation is mandatory: PublishDocs checks the generated static page exists before
// copying it, because a docs step reporting success does not prove the file was written.
// Build-state files are optional and copied when present.
package publish
