// Package job runs background jobs on a fixed pool of workers fed by a
// bounded in-memory queue.
package job
