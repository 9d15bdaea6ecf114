package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pramitgaha/map-error/lib/stable/memmgr"
	"github.com/pramitgaha/map-error/lib/store"
	"github.com/pramitgaha/map-error/lib/users"
	"github.com/pramitgaha/map-error/rpc/client"
	"github.com/pramitgaha/map-error/rpc/common"
	"github.com/pramitgaha/map-error/rpc/serializer"
	"github.com/pramitgaha/map-error/rpc/transport"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

// --------------------------------------------------------------------------
// In-process transport
// --------------------------------------------------------------------------

// loopback passes requests straight to the registered handler
type loopback struct {
	mu      sync.RWMutex
	handler transport.ServerHandleFunc
	done    chan struct{}
	once    sync.Once
}

func newLoopback() *loopback {
	return &loopback{done: make(chan struct{})}
}

func (l *loopback) RegisterHandler(handler transport.ServerHandleFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = handler
}

func (l *loopback) Listen(common.ServerConfig) error {
	<-l.done
	return nil
}

func (l *loopback) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

// client returns the client side of the loopback
func (l *loopback) client() transport.IRPCClientTransport {
	return &loopbackClient{l: l}
}

type loopbackClient struct {
	l *loopback
}

func (c *loopbackClient) Connect(common.ClientConfig) error { return nil }

func (c *loopbackClient) Send(shardId uint64, req []byte) ([]byte, error) {
	select {
	case <-c.l.done:
		return nil, errors.New("loopback closed")
	default:
	}
	c.l.mu.RLock()
	defer c.l.mu.RUnlock()
	return c.l.handler(shardId, req), nil
}

func (c *loopbackClient) Close() error { return nil }

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func testConfig() common.ServerConfig {
	return common.ServerConfig{
		Shards: []common.ServerShard{
			{ShardID: 1, Type: common.ShardTypeStable},
			{ShardID: 2, Type: common.ShardTypeHeap},
		},
		DataDir:       "/data",
		MemoryFile:    "smap.mem",
		MaxRecordSize: 64 * 1024,
		LogLevel:      "error",
	}
}

// startServer starts a server on fs and returns it with a client for each shard
func startServer(t *testing.T, fs afero.Fs, config common.ServerConfig) (*RPCServer, map[uint64]*client.RPCStore) {
	t.Helper()

	lb := newLoopback()
	s := NewRPCServer(config, lb, serializer.NewBinarySerializer())
	s.fs = fs
	require.NoError(t, s.Start())

	clients := make(map[uint64]*client.RPCStore)
	for _, shard := range config.Shards {
		c, err := client.NewRPCStore(shard.ShardID, common.ClientConfig{}, lb.client(), serializer.NewBinarySerializer())
		require.NoError(t, err)
		clients[shard.ShardID] = c
	}
	return s, clients
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestServerRoundTrip(t *testing.T) {
	s, clients := startServer(t, afero.NewMemMapFs(), testConfig())
	defer s.Shutdown()

	for id, c := range clients {
		alice := users.User{Name: "alice", FavNumbers: [][]byte{{1, 2}, {3}}}

		replaced, err := c.Insert(uint128.From64(7), alice)
		require.NoError(t, err, "shard %d", id)
		assert.False(t, replaced)

		replaced, err = c.Insert(uint128.From64(7), alice)
		require.NoError(t, err)
		assert.True(t, replaced)

		got, ok, err := c.Get(uint128.From64(7))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, alice, got)

		_, ok, err = c.Get(uint128.From64(8))
		require.NoError(t, err)
		assert.False(t, ok)

		n, err := c.Seed(3)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), n)

		length, err := c.Len()
		require.NoError(t, err)
		assert.Equal(t, uint64(4), length)

		entries, err := c.Scan(uint128.From64(1), 0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, uint128.From64(1), entries[0].Key)
		assert.Equal(t, uint128.From64(7), entries[2].Key)
		assert.Equal(t, users.SeedUser(2), entries[1].User)

		removed, err := c.Remove(uint128.From64(7))
		require.NoError(t, err)
		assert.True(t, removed)

		has, err := c.Has(uint128.From64(7))
		require.NoError(t, err)
		assert.False(t, has)

		_, err = c.GetDBInfo()
		require.NoError(t, err)
	}
}

func TestServerSizeBound(t *testing.T) {
	config := testConfig()
	config.MaxRecordSize = 100
	s, clients := startServer(t, afero.NewMemMapFs(), config)
	defer s.Shutdown()

	big := users.User{Name: "big", FavNumbers: [][]byte{make([]byte, 200)}}
	_, err := clients[1].Insert(uint128.From64(1), big)
	require.Error(t, err)

	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.RetCSizeBoundExceeded, storeErr.Code)

	has, err := clients[1].Has(uint128.From64(1))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestServerSeedLimit(t *testing.T) {
	s, clients := startServer(t, afero.NewMemMapFs(), testConfig())
	defer s.Shutdown()

	_, err := clients[2].Seed(MaxSeedCount + 1)
	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.RetCInvalidOperation, storeErr.Code)
}

func TestServerUnknownShard(t *testing.T) {
	s, _ := startServer(t, afero.NewMemMapFs(), testConfig())
	defer s.Shutdown()

	ser := serializer.NewBinarySerializer()
	req, err := ser.Serialize(*common.NewLenRequest())
	require.NoError(t, err)

	var resp common.Message
	require.NoError(t, ser.Deserialize(s.handle(99, req), &resp))
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Equal(t, store.RetCInvalidOperation, store.RetCode(resp.Code))

	require.NoError(t, ser.Deserialize(s.handle(1, []byte{0xff}), &resp))
	assert.Equal(t, common.MsgTError, resp.MsgType)
}

func TestServerInvalidKey(t *testing.T) {
	s, _ := startServer(t, afero.NewMemMapFs(), testConfig())
	defer s.Shutdown()

	ser := serializer.NewBinarySerializer()
	req, err := ser.Serialize(*common.NewGetRequest("not a number"))
	require.NoError(t, err)

	var resp common.Message
	require.NoError(t, ser.Deserialize(s.handle(1, req), &resp))
	assert.Equal(t, store.RetCInvalidOperation, store.RetCode(resp.Code))
	assert.NotEmpty(t, resp.Err)
}

func TestServerRestartKeepsStableShard(t *testing.T) {
	fs := afero.NewMemMapFs()
	config := testConfig()

	s, clients := startServer(t, fs, config)
	_, err := clients[1].Insert(uint128.From64(42), users.User{Name: "durable"})
	require.NoError(t, err)
	_, err = clients[2].Insert(uint128.From64(42), users.User{Name: "volatile"})
	require.NoError(t, err)
	require.NoError(t, s.Shutdown())

	exists, err := afero.Exists(fs, config.MemoryPath())
	require.NoError(t, err)
	require.True(t, exists)

	s, clients = startServer(t, fs, config)
	defer s.Shutdown()

	got, ok, err := clients[1].Get(uint128.From64(42))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "durable", got.Name)

	_, ok, err = clients[2].Get(uint128.From64(42))
	require.NoError(t, err)
	assert.False(t, ok)

	stats := s.State().Stats()
	assert.Equal(t, uint64(2), stats.Starts)
	assert.Equal(t, uint64(1), stats.Inserts)
}

func TestServerRejectsInvalidConfig(t *testing.T) {
	config := testConfig()
	config.Shards = append(config.Shards, common.ServerShard{ShardID: 3, Type: common.ShardTypeStable})

	s := NewRPCServer(config, newLoopback(), serializer.NewBinarySerializer())
	s.fs = afero.NewMemMapFs()
	assert.Error(t, s.Start())
}

func TestServerMemoryGauges(t *testing.T) {
	s, clients := startServer(t, afero.NewMemMapFs(), testConfig())
	defer s.Shutdown()

	_, err := clients[1].Insert(uint128.From64(1), users.User{Name: "gauged", FavNumbers: [][]byte{make([]byte, 512)}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.metrics.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	pages := s.State().MemoryStats().MemoryPages
	for _, id := range []memmgr.MemoryID{memmgr.UpgradesMemoryID, memmgr.MapMemoryID} {
		assert.Contains(t, body, fmt.Sprintf("smap_memory_pages{memory=\"%d\"} %d\n", id, pages[id]))
	}
	assert.Contains(t, body, "smap_map_length 1\n")
}
