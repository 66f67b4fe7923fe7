// Package connectors provides the document sources obra ingests from.
// Only local folders are supported; see package filesystem.
package connectors
