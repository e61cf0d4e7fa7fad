// Package engine implements the job lifecycle state machine:
//
//	STARTING → RUNNING → {COMPLETED, ERROR, ABORTED}
//
// The engine is the sole writer of a record's status. Centralizing every
// transition here guarantees no caller-visible state skips STARTING or
// RUNNING, and keeps transition validity checkable in one place.
package engine
