// Package events provides types and interfaces for an event-driven architecture.
//
// Services emit TaskEvents without knowing which handlers will process them.
// Two kinds of events flow through the emitter: processing requests, which a
// handler turns into background work, and lifecycle notifications
// (created, completed, failed), which observers such as metrics consume.
package events
