package lstore

import (
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/pramitgaha/map-error/lib/db"
	"github.com/pramitgaha/map-error/lib/stable/codec"
	"github.com/pramitgaha/map-error/lib/store"
	"github.com/pramitgaha/map-error/lib/users"
	"lukechampine.com/uint128"
)

var log = logger.GetLogger("store")

type storeImpl struct {
	db    db.KVDB
	codec codec.Codec[users.User]
}

// Options configures a local store.
type Options struct {
	MaxRecordSize uint32 // Largest encoded user in bytes (0 = unbounded)
}

// NewLocalStore creates a new local store instance on top of the db returned by factory.
// opts may be nil.
func NewLocalStore(factory store.DBFactory, opts *Options) store.IStore {
	if opts == nil {
		opts = &Options{}
	}
	return &storeImpl{
		db:    factory(),
		codec: users.NewCodec(opts.MaxRecordSize),
	}
}

// decode turns a stored value back into a user, reporting the key on failure.
func (s *storeImpl) decode(key uint128.Uint128, value []byte) (users.User, error) {
	u, err := s.codec.Decode(value)
	if err != nil {
		log.Warningf("record under key %s is corrupt: %v", key, err)
		return users.User{}, store.NewError(store.RetCCorruptRecord, fmt.Sprintf("key %s: %v", key, err))
	}
	return u, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Insert(key uint128.Uint128, user users.User) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureInsert) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Insert operation is not supported")
	}
	value, err := codec.EncodeBounded(s.codec, user)
	if err != nil {
		return false, store.FromError(err)
	}
	_, replaced, err := s.db.Insert(key, value)
	return replaced, store.FromError(err)
}

func (s *storeImpl) Get(key uint128.Uint128) (users.User, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return users.User{}, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	value, ok, err := s.db.Get(key)
	if err != nil {
		return users.User{}, false, store.FromError(err)
	}
	if !ok {
		return users.User{}, false, nil
	}
	u, err := s.decode(key, value)
	if err != nil {
		return users.User{}, false, err
	}
	return u, true, nil
}

func (s *storeImpl) Remove(key uint128.Uint128) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureRemove) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Remove operation is not supported")
	}
	_, removed, err := s.db.Remove(key)
	return removed, store.FromError(err)
}

func (s *storeImpl) Has(key uint128.Uint128) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
	}
	ok, err := s.db.Has(key)
	return ok, store.FromError(err)
}

func (s *storeImpl) Scan(from uint128.Uint128, limit int) ([]store.Entry, error) {
	if !s.db.SupportsFeature(db.FeatureScan) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "Scan operation is not supported")
	}
	if limit < 0 {
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("negative scan limit %d", limit))
	}

	var (
		entries   []store.Entry
		decodeErr error
	)
	err := s.db.Scan(from, func(key db.Key, value []byte) bool {
		u, err := s.decode(key, value)
		if err != nil {
			decodeErr = err
			return false
		}
		entries = append(entries, store.Entry{Key: key, User: u})
		return limit == 0 || len(entries) < limit
	})
	if err != nil {
		return nil, store.FromError(err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return entries, nil
}

func (s *storeImpl) Len() (uint64, error) {
	return s.db.Len(), nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
