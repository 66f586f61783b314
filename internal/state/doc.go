// Package state records which policy items have been applied to which modules.
//
// The Ledger is the authoritative record of what the overlay engine has
// written during one build invocation. It lives in memory only and is
// discarded when configuration ends.
//
// Key concepts:
//   - Record: one (module, item) application with the value written
//   - Ledger: thread-safe set of records; marking an existing key is a no-op
//   - Snapshot: ordered copy of the ledger for reports and comparisons
package state
