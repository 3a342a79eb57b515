// Package task runs sync operations in the background and tracks their
// status and progress.
//
// One writing task runs at a time. Stop cancels a task's context; sync work
// observes it at the next instrument boundary.
package task
