// Package service contains the application use cases. It orchestrates domain
// objects, the priority cascade engine and the store interfaces (internal/store)
// inside transactions.
//
// Key components:
//
// 1. TaskService:
//   - Validates and normalizes input before any transaction is opened
//   - Runs every write, including its cascade, in one transaction that is
//     retried when the store reports a retryable lock failure
//   - Enforces ownership; a task is only visible to the user who owns it
//
// 2. ReportService:
//   - Manages the per-user digest schedule
//
// The service layer depends on domain entities and repository interfaces,
// never on a specific database backend.
package service
