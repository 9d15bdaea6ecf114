// Package client implements the RPC client of smap. RPCStore implements store.IStore
// and forwards every operation to one shard of a remote server.
//
// The package focuses on:
//   - Transparent RPC access to a remote user map
//   - Integration with the transport and serialization layers
//   - Error handling: error responses are rebuilt into *store.Error values with the
//     code the server sent, so errors.Is(err, codec.ErrCorruptRecord) works remotely too
//
// Usage Example:
//
//	config := common.ClientConfig{
//		TimeoutSecond: 5,
//		Transport: common.ClientTransportConfig{
//			Endpoints:  []string{"localhost:8080"},
//			RetryCount: 3,
//		},
//	}
//
//	s, err := client.NewRPCStore(1, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	_, err = s.Insert(uint128.From64(7), users.User{Name: "seven"})
//	u, ok, err := s.Get(uint128.From64(7))
//
// Performance Considerations:
//
//   - Seeded users are about 2 KB per block, so scans of many users produce large
//     responses. Page through them with a Scan limit.
//
//   - The binary serializer provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	RPCStore is safe for concurrent use from multiple goroutines.
package client
