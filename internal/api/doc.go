// Package api handles incoming HTTP requests, request validation and
// response formatting. It adapts the task service to HTTP: creating a task
// returns immediately with the pending task, and clients poll the task
// endpoint until it reaches a terminal status.
package api
