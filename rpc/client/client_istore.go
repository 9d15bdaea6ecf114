package client

import (
	"encoding/json"
	"fmt"

	"github.com/pramitgaha/map-error/lib/db"
	"github.com/pramitgaha/map-error/lib/store"
	"github.com/pramitgaha/map-error/lib/users"
	"github.com/pramitgaha/map-error/rpc/common"
	"github.com/pramitgaha/map-error/rpc/serializer"
	"github.com/pramitgaha/map-error/rpc/transport"
	"lukechampine.com/uint128"
)

// NewRPCStore connects the transport and returns a store for the given shard.
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCStore, error) {

	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &RPCStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

// RPCStore implements store.IStore on top of a remote shard. Users are sent as CBOR,
// the server checks them against its own size bound.
//
// Thread-safety: RPCStore is safe for concurrent use.
type RPCStore struct {
	rpcClientAdapter
}

var _ store.IStore = (*RPCStore)(nil)

// Seed asks the server to write the demo users 0..count-1 and returns how many existed.
func (s *RPCStore) Seed(count uint64) (replaced uint64, err error) {
	resp, err := s.invoke(common.NewSeedRequest(count))
	if err != nil {
		return 0, err
	}
	return resp.Limit, nil
}

// Close closes the transport.
func (s *RPCStore) Close() error {
	return s.transport.Close()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *RPCStore) Insert(key uint128.Uint128, user users.User) (bool, error) {
	value, err := users.Codec.Encode(user)
	if err != nil {
		return false, store.FromError(err)
	}
	resp, err := s.invoke(common.NewInsertRequest(key.String(), value))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *RPCStore) Get(key uint128.Uint128) (users.User, bool, error) {
	resp, err := s.invoke(common.NewGetRequest(key.String()))
	if err != nil || !resp.Ok {
		return users.User{}, false, err
	}
	u, err := users.Codec.Decode(resp.Value)
	if err != nil {
		return users.User{}, false, store.FromError(err)
	}
	return u, true, nil
}

func (s *RPCStore) Remove(key uint128.Uint128) (bool, error) {
	resp, err := s.invoke(common.NewRemoveRequest(key.String()))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *RPCStore) Has(key uint128.Uint128) (bool, error) {
	resp, err := s.invoke(common.NewHasRequest(key.String()))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *RPCStore) Scan(from uint128.Uint128, limit int) ([]store.Entry, error) {
	if limit < 0 {
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("negative scan limit %d", limit))
	}
	resp, err := s.invoke(common.NewScanRequest(from.String(), uint64(limit)))
	if err != nil {
		return nil, err
	}

	entries := make([]store.Entry, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		key, err := uint128.FromString(e.Key)
		if err != nil {
			return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid key %q in scan response", e.Key))
		}
		u, err := users.Codec.Decode(e.Value)
		if err != nil {
			return nil, store.FromError(err)
		}
		entries = append(entries, store.Entry{Key: key, User: u})
	}
	return entries, nil
}

func (s *RPCStore) Len() (uint64, error) {
	resp, err := s.invoke(common.NewLenRequest())
	if err != nil {
		return 0, err
	}
	return resp.Limit, nil
}

// GetDBInfo returns the information of the remote database. Metadata arrives as
// generic json values.
func (s *RPCStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := s.invoke(common.NewInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return db.DatabaseInfo{}, store.NewError(store.RetCInternalError, fmt.Sprintf("decode database info: %v", err))
	}
	return info, nil
}
