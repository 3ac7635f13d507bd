// Package domain contains the task and image variant entities, the task
// status state machine and source reference rules. It has no dependency on
// storage, transport or image codecs.
package domain
