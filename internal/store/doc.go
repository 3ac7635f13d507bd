// Package store defines the task and image variant persistence ports, the
// errors every implementation translates its driver errors into, and the
// transaction helper shared by the SQL implementations.
package store
