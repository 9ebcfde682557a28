// Package webhooks authenticates and decodes worker callbacks before they
// reach block ingestion.
package webhooks
