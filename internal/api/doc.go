// Package api implements the local HTTP control API for boxsync.
//
// This package provides:
//   - Read endpoints for the device registry and channel catalog
//   - Command endpoints that forward remote-control actions to the bridge
//   - Health and metrics endpoints for supervision
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// The server is a thin layer over the device registry and the Horizon
// bridge. Reads come straight from registry snapshots. Commands are handed
// to the bridge, which publishes them to the household broker and answers
// 202 Accepted; the resulting state arrives later through the box's status
// message and is visible on the next read.
//
// # Graceful Degradation
//
// The server keeps answering while the broker is down. Reads return the
// last reconciled state, /health reports "degraded" and commands fail
// with 503.
package api
