// Package server implements the RPC server of the user map.
// It hosts a set of shards, each a store.IStore, and routes the requests that
// arrive through a transport to the shard they address.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating the adapter that translates
//     RPC requests into store.IStore calls. Users travel as CBOR and keys as decimal strings.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 1, Type: common.ShardTypeStable},
//	    {ShardID: 2, Type: common.ShardTypeHeap},
//	  },
//	  DataDir:    "./data",
//	  MemoryFile: "smap.mem",
//	  Endpoint:   "0.0.0.0:8080",
//	  LogLevel:   "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// There are two types of shards:
//
//   - ShardTypeStable: The durable map. It lives in the memory file and survives a
//     restart of the server. Shutdown runs the pre-teardown hook that saves the
//     statistics next to the map, the next start restores them. At most one
//     stable shard is allowed per server.
//
//   - ShardTypeHeap: A map on the Go heap that is lost when the server stops.
//
// Metrics in the prometheus text format are served on GET /metrics, by the http
// transport and by the optional MetricsEndpoint listener.
//
// Thread Safety:
//
//	The server handles concurrent requests across multiple connections.
//	Start, Serve and Shutdown must not be called concurrently.
package server
