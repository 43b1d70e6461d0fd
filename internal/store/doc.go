// Package store defines the persistence interfaces for tasks and report
// schedules, the shared storage errors, and the transaction helpers every
// backend runs under.
package store
