// Package common provides the data structures shared by the rpc client and server.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, with a flexible
//     structure that adapts to the operation types. Includes factory methods for
//     the requests and responses of every operation. Errors carry the store.RetCode
//     so the client can rebuild a *store.Error.
//
//   - MessageType: Enumeration of the supported operations (insert, get, remove,
//     has, scan, len, seed, info) and the success and error responses.
//
//   - ServerConfig: Configuration of a server node: shards, memory file, size bound,
//     network and transport tuning. Validate reports inconsistent shard lists.
//
//   - ClientConfig: Configuration for clients, controlling endpoints, timeouts
//     and retry behavior.
//
//   - Logger: Logging implementation plugged into the dragonboat logger
//     registry, with a consistent format across the application.
package common
