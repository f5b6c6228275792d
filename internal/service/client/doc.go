// Package client manages CRM contacts and their channel subscriptions.
//
// Emails are normalized (trimmed, lowercased) and unique across all
// clients. A new client starts with a subscribed email subscription so it
// is immediately eligible for campaign audiences.
package client
