package client

import (
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/pramitgaha/map-error/lib/store"
	"github.com/pramitgaha/map-error/rpc/common"
	"github.com/pramitgaha/map-error/rpc/serializer"
	"github.com/pramitgaha/map-error/rpc/transport"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter stores everything a client needs to talk to one shard
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends a request to the shard and returns the response.
// Error responses are turned into *store.Error values with the code sent by the server,
// transport and decoding failures into RetCInternalError.
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("serialize %s request: %v", req.MsgType, err))
	}

	respBytes, err := a.transport.Send(a.shardId, reqBytes)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("send %s request: %v", req.MsgType, err))
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("deserialize %s response: %v", req.MsgType, err))
	}

	if err := resp.ResponseError(); err != nil {
		return nil, err
	}

	if resp.MsgType != req.MsgType {
		return nil, store.NewError(store.RetCInternalError,
			fmt.Sprintf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType))
	}

	return resp, nil
}
