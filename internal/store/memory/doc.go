// Package memory provides in-process implementations of the store interfaces.
// Records are copied on every read and write so callers never share state
// with the store.
package memory
