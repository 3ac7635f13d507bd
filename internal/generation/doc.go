// Package generation produces resized variants of a source image.
//
// A Generator acquires the source bytes (downloading remote URLs or copying
// local files), hashes them, and writes one output per configured resolution
// under a content-addressed path. Outputs that already exist on disk are
// reused, which makes generation idempotent and safe to re-run.
package generation
