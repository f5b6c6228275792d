// Package sending implements the tracked send pipeline: it drains a
// campaign's pending jobs in bounded batches, re-checks suppression at send
// time, renders and rewrites content per recipient, and records per-job
// outcomes without ever letting one recipient's failure abort the batch.
//
// All collaborators (mail transport, repositories, rewriter, lock factory)
// are constructor-injected so tests can substitute fakes.
package sending
