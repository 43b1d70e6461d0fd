// Package domain contains the core task-tracking entities and their
// validation rules: tasks, status history and digest schedules. It has no
// knowledge of storage or transport.
package domain
