// Package service provides the application-level task workflows: creating a
// task and handing it to background processing, querying a task, and
// re-submitting tasks left pending by a previous run.
package service
