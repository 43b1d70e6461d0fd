// Package postgres provides PostgreSQL implementations of the store
// interfaces defined in internal/store.
//
// Writers for one owner are serialized with a transaction-scoped advisory lock
// keyed on the owner ID, taken before any row lock. Writers for different
// owners only contend on rows they share, which is none. Lock waits are bounded
// by lock_timeout; a timeout, deadlock or serialization failure maps to
// store.ErrRetryable.
package postgres
