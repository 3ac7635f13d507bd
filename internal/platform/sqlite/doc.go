// Package sqlite implements the task and image stores on a single SQLite
// file using the pure-Go modernc.org/sqlite driver. It suits single-node
// deployments that want tasks to survive a restart without running a
// database server.
package sqlite
