// Package http carries rpc frames as HTTP requests: a request is POST /{shardId}
// with the serialized message as body, the response body is the serialized answer.
//
// The client spreads requests round robin over the configured endpoints and retries
// failed attempts on the next one (bare host:port endpoints get an http:// prefix).
// The server runs a net/http server; HandleHTTP mounts additional routes such as
// GET /metrics before Listen. Close shuts the server down gracefully and waits up
// to ten seconds for requests in flight. With log level debug every request is logged.
package http
