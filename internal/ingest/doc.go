// Package ingest accepts connections on a Unix domain socket, reads each one
// to end of stream and decodes the bytes as a single JSON document.
//
// There is no framing and no reply. Every accepted connection produces
// exactly one Outcome, delivered to an Observer; the peer never learns
// whether its payload was accepted.
package ingest
