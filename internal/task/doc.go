// Package task manages background job queuing, processing, and lifecycle.
// It provides mechanisms for asynchronous execution of image variant
// generation, ensuring it never blocks HTTP request handling. Every submitted
// unit runs in its own goroutine; there is no ordering between units.
package task
