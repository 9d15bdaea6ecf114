// Package rpc provides the remote access to the user map. It acts as the
// communication layer between the command line client and the server.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, the configuration structures and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPCStore, a store.IStore that forwards every call to a server shard.
//
//   - server: The server that hosts the shards and answers requests.
package rpc
