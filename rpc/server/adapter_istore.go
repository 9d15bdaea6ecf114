package server

import (
	"encoding/json"
	"fmt"

	"github.com/pramitgaha/map-error/lib/store"
	"github.com/pramitgaha/map-error/lib/users"
	"github.com/pramitgaha/map-error/rpc/common"
	"lukechampine.com/uint128"
)

// MaxSeedCount is the largest number of users a single seed request may write.
// Seeded users grow linearly with their id, so n users take about n*n KB.
const MaxSeedCount = 100

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTInsert:
		key, err := parseKey(req.Key)
		if err != nil {
			return common.NewInsertResponse(false, err)
		}
		u, err := users.Codec.Decode(req.Value)
		if err != nil {
			return common.NewInsertResponse(false, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("malformed user: %v", err)))
		}
		replaced, err := s.Insert(key, u)
		return common.NewInsertResponse(replaced, err)

	case common.MsgTGet:
		key, err := parseKey(req.Key)
		if err != nil {
			return common.NewGetResponse(nil, false, err)
		}
		u, ok, err := s.Get(key)
		if err != nil || !ok {
			return common.NewGetResponse(nil, false, err)
		}
		value, err := users.Codec.Encode(u)
		return common.NewGetResponse(value, err == nil, store.FromError(err))

	case common.MsgTRemove:
		key, err := parseKey(req.Key)
		if err != nil {
			return common.NewRemoveResponse(false, err)
		}
		removed, err := s.Remove(key)
		return common.NewRemoveResponse(removed, err)

	case common.MsgTHas:
		key, err := parseKey(req.Key)
		if err != nil {
			return common.NewHasResponse(false, err)
		}
		ok, err := s.Has(key)
		return common.NewHasResponse(ok, err)

	case common.MsgTScan:
		return adapter.scan(req, s)

	case common.MsgTLen:
		length, err := s.Len()
		return common.NewLenResponse(length, err)

	case common.MsgTSeed:
		if req.Limit > MaxSeedCount {
			return common.NewSeedResponse(0, store.NewError(store.RetCInvalidOperation,
				fmt.Sprintf("cannot seed %d users, the limit is %d", req.Limit, MaxSeedCount)))
		}
		replaced, err := users.Seed(s, int(req.Limit))
		return common.NewSeedResponse(uint64(replaced), err)

	case common.MsgTInfo:
		info, err := s.GetDBInfo()
		if err != nil {
			return common.NewInfoResponse(nil, err)
		}
		meta, err := json.Marshal(info)
		return common.NewInfoResponse(meta, store.FromError(err))

	default:
		return common.NewErrorResponse(store.RetCInvalidOperation,
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType))
	}
}

func (adapter *iStoreServerAdapterImpl) scan(req *common.Message, s store.IStore) *common.Message {
	from := uint128.Zero
	if req.Key != "" {
		var err error
		if from, err = parseKey(req.Key); err != nil {
			return common.NewScanResponse(nil, err)
		}
	}
	if req.Limit > uint64(^uint(0)>>1) {
		return common.NewScanResponse(nil, store.NewError(store.RetCInvalidOperation, "scan limit out of range"))
	}

	found, err := s.Scan(from, int(req.Limit))
	if err != nil {
		return common.NewScanResponse(nil, err)
	}

	entries := make([]common.Entry, len(found))
	for i, e := range found {
		value, err := users.Codec.Encode(e.User)
		if err != nil {
			return common.NewScanResponse(nil, store.FromError(err))
		}
		entries[i] = common.Entry{Key: e.Key.String(), Value: value}
	}
	return common.NewScanResponse(entries, nil)
}

// parseKey parses a decimal uint128 key
func parseKey(key string) (uint128.Uint128, error) {
	if key == "" {
		return uint128.Zero, store.NewError(store.RetCInvalidOperation, "missing key")
	}
	k, err := uint128.FromString(key)
	if err != nil {
		return uint128.Zero, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("invalid key %q: %v", key, err))
	}
	return k, nil
}
