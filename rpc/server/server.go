package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/pramitgaha/map-error/lib/db"
	"github.com/pramitgaha/map-error/lib/db/engines/heap"
	"github.com/pramitgaha/map-error/lib/stable/memory"
	"github.com/pramitgaha/map-error/lib/state"
	"github.com/pramitgaha/map-error/lib/store"
	"github.com/pramitgaha/map-error/lib/store/lstore"
	"github.com/pramitgaha/map-error/rpc/common"
	"github.com/pramitgaha/map-error/rpc/serializer"
	"github.com/pramitgaha/map-error/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/afero"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		metrics:    newServerMetrics(),
		fs:         afero.NewOsFs(),
	}
}

// RPCServer serves the configured shards over one transport.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	metrics    *serverMetrics
	fs         afero.Fs

	state         *state.State // nil without a stable shard
	heaps         []db.KVDB
	metricsServer *http.Server
	listenErr     chan error
}

// State returns the process state of the stable shard, nil if there is none.
func (s *RPCServer) State() *state.State {
	return s.state
}

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

// handle is the transport handler: it decodes a request, runs it against the shard
// and encodes the response.
func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	var respMsg *common.Message

	shard, ok := s.shards.Load(shardId)
	if !ok {
		s.metrics.rejected("unknown_shard")
		respMsg = common.NewErrorResponse(store.RetCInvalidOperation, fmt.Sprintf("shard %d not found", shardId))
	} else {
		var msg common.Message
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			s.metrics.rejected("malformed")
			respMsg = common.NewErrorResponse(store.RetCInvalidOperation, fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			start := time.Now()
			respMsg = shard.Adapter.Handle(&msg, shard.Store)
			s.metrics.observe(shardId, msg.MsgType, start, respMsg.Err != "")
		}
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(store.RetCInternalError, fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// init creates the shards. The stable shard attaches to the memory file, which runs
// the post-restart hook.
func (s *RPCServer) init() error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	for _, shardConfig := range s.config.Shards {
		var database db.KVDB
		var shardStore store.IStore

		switch shardConfig.Type {
		case common.ShardTypeStable:
			mem, err := s.openMemory()
			if err != nil {
				return err
			}
			st, err := state.Open(mem, &state.Options{
				BucketSizeInPages: s.config.BucketSizeInPages,
				NodeBytes:         s.config.NodeBytes,
				MaxRecordSize:     s.config.MaxRecordSize,
			})
			if err != nil {
				if closer, ok := mem.(io.Closer); ok {
					closer.Close()
				}
				return fmt.Errorf("failed to open stable shard %d: %w", shardConfig.ShardID, err)
			}
			s.state = st
			s.metrics.watchState(st)
			shardStore = st.Store()

		case common.ShardTypeHeap:
			database = heap.NewHeapDB(nil)
			s.heaps = append(s.heaps, database)
			shardStore = lstore.NewLocalStore(func() db.KVDB { return database }, &lstore.Options{MaxRecordSize: s.config.MaxRecordSize})
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   shardStore,
			Adapter: NewIStoreServerAdapter(),
		})
		Logger.Infof("created %s shard %d", shardConfig.Type, shardConfig.ShardID)
	}

	s.transport.RegisterHandler(s.handle)

	// the http transport serves the metrics next to the rpc route
	if mounter, ok := s.transport.(interface {
		HandleHTTP(pattern string, handler http.Handler)
	}); ok {
		mounter.HandleHTTP("GET /metrics", s.metrics.handler())
	}

	return nil
}

// openMemory opens the memory file of the stable shard, or a heap memory without one
func (s *RPCServer) openMemory() (memory.Memory, error) {
	path := s.config.MemoryPath()
	if path == "" {
		Logger.Warningf("no memory file configured, the stable shard is lost when the server stops")
		return memory.NewVectorMemory(), nil
	}
	mem, err := memory.OpenFileMemory(s.fs, path, nil)
	if err != nil {
		return nil, err
	}
	Logger.Infof("opened memory file %s with %d pages", path, mem.Size())
	return mem, nil
}

// Start initializes the shards and starts the transport (and the metrics listener)
// in the background.
func (s *RPCServer) Start() error {
	common.InitLoggers(s.config.LogLevel)

	if err := s.init(); err != nil {
		s.closeShards()
		return err
	}

	if s.config.MetricsEndpoint != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", s.metrics.handler())
		s.metricsServer = &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}
		go func() {
			Logger.Infof("Serving metrics on %s", s.config.MetricsEndpoint)
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Logger.Errorf("metrics server failed: %v", err)
			}
		}()
	}

	s.listenErr = make(chan error, 1)
	go func() {
		s.listenErr <- s.transport.Listen(s.config)
	}()

	Logger.Infof("smap setup completed successfully")
	return nil
}

// Serve starts the server and blocks until SIGINT or SIGTERM arrives or the transport
// fails. Either way the server is shut down gracefully.
func (s *RPCServer) Serve() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var listenErr error
	select {
	case sig := <-sigCh:
		Logger.Infof("received %s, shutting down", sig)
	case listenErr = <-s.listenErr:
		s.listenErr = nil
		if listenErr != nil {
			Logger.Errorf("transport failed: %v", listenErr)
		}
	}

	return errors.Join(listenErr, s.Shutdown())
}

// Shutdown stops accepting requests, waits for the ones in flight, runs the
// pre-teardown hook and closes all shards.
func (s *RPCServer) Shutdown() error {
	var errs []error

	if err := s.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}
	if s.listenErr != nil {
		if err := <-s.listenErr; err != nil {
			errs = append(errs, fmt.Errorf("transport: %w", err))
		}
		s.listenErr = nil
	}

	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close metrics server: %w", err))
		}
		cancel()
	}

	if s.state != nil {
		if err := s.state.PreTeardown(); err != nil {
			errs = append(errs, fmt.Errorf("pre-teardown: %w", err))
		}
	}
	if err := s.closeShards(); err != nil {
		errs = append(errs, err)
	}

	Logger.Infof("server stopped")
	return errors.Join(errs...)
}

// closeShards closes the state and the heap engines
func (s *RPCServer) closeShards() error {
	var errs []error
	if s.state != nil {
		if err := s.state.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close state: %w", err))
		}
	}
	for _, h := range s.heaps {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.heaps = nil
	return errors.Join(errs...)
}
