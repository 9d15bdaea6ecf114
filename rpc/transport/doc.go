// Package transport defines how rpc frames travel between client and server.
//
// A server transport receives (shardId, request) pairs and hands them to the
// registered ServerHandleFunc; the returned bytes go back to the caller. A client
// transport sends a request to a shard and waits for the answer. Both sides treat
// payloads as opaque bytes, encoding is the job of the serializer package.
//
// Implementations live in the subpackages: tcp and unix (framed streams on top of
// base) and http (one POST per request).
package transport
