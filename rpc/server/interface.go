package server

import (
	"github.com/pramitgaha/map-error/lib/store"
	"github.com/pramitgaha/map-error/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request against the store of a shard and returns the response.
	// Errors are reported in the response, never by panicking.
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}
