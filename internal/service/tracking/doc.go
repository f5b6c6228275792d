// Package tracking implements per-recipient content rewriting and inbound
// engagement recording (opens, clicks, unsubscribes).
//
// The Rewriter is a pure transformation: campaign body + one job's tokens in,
// recipient-specific body out. The Service resolves inbound tokens back to
// jobs and appends events, enforcing at-most-once semantics for opens.
//
// The service layer depends only on the repository interfaces defined in
// repository.go; it never imports net/http or database/sql.
package tracking
