// Package postgres implements the task and image stores on PostgreSQL
// through the pgx database/sql driver. Open a handle with Open, bring the
// schema up to date with Migrate, then build the stores on the *sql.DB or
// on a *sql.Tx via WithTx.
package postgres
