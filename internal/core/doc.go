// Package core provides the lab record operations used by the web server
// and labctl.
//
// The package holds the domain logic above the spreadsheet store and is
// independent of any transport. It can be used by web handlers, CLI tools,
// or tests without modification.
//
// # Architecture
//
//   - Registry: the configured spreadsheets, each addressed by a key such as
//     "sao-lucas", holding exactly one record kind.
//   - Service: one [sheetstore.Store] per sheet plus the attachment
//     uploader, the optional audit store and the upload limiter.
//   - Search and reports: accent-insensitive filtering and the report
//     selection over listed exams.
//   - Audit: every mutation is recorded when a database is configured.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - SHT001-SHT005: Spreadsheet errors (unavailable, paused, configuration)
//   - REC001-REC003: Record errors (validation, not found, dates)
//   - ATT001-ATT005: Attachment errors (upload, size, concurrency)
//   - AUTH001-AUTH003: Access errors
//
// # Audit Logging
//
// Mutations are recorded with severity levels:
//
//   - Low: Attachment uploads, logins
//   - Medium: Appends and updates
//   - High: Deletions, failed logins
//   - Critical: Header initialization
//
// # Thread Safety
//
// The Service is safe for concurrent use. Concurrent updates of the same
// record are last-writer-wins at the spreadsheet.
package core
