package common

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerShardType string

const (
	// ShardTypeStable is the durable map kept in the memory file. A server has at most one.
	ShardTypeStable ServerShardType = "stable"
	// ShardTypeHeap is an in-memory map that is lost when the server stops.
	ShardTypeHeap ServerShardType = "heap"
)

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type selects the engine behind the shard
	Type ServerShardType
}

// ServerTransportConfig holds the socket settings of the tcp and unix transports.
type ServerTransportConfig struct {
	WorkersPerConn  int  // Concurrent requests per connection (minimum 1)
	BufferSize      int  // Size of the pooled frame buffers (0 = transport default)
	TCPNoDelay      bool // Disable Nagle's algorithm
	TCPKeepAliveSec int  // Keep-alive period (0 = off)
	TCPLingerSec    int  // SO_LINGER (-1 = system default)
	WriteBufferSize int  // Socket send buffer (0 = system default)
	ReadBufferSize  int  // Socket receive buffer (0 = system default)
}

// ServerConfig holds all configuration parameters of a server.
type ServerConfig struct {
	// Shards served by this process
	Shards []ServerShard

	// Storage
	DataDir           string // Directory of the memory file
	MemoryFile        string // Name of the memory file in DataDir ("" = keep the stable shard in memory)
	BucketSizeInPages uint16 // Memory manager bucket size for a new memory file
	NodeBytes         uint32 // B-tree node size for a new map
	MaxRecordSize     uint32 // Largest encoded user accepted by Insert (0 = unbounded)

	// Requests
	TimeoutSecond int64

	// API settings
	Endpoint        string
	MetricsEndpoint string // Separate listener for GET /metrics ("" = none)
	Transport       ServerTransportConfig

	// Logging configuration
	LogLevel string
}

// MemoryPath returns the location of the memory file, "" when the stable shard is
// kept in memory.
func (c *ServerConfig) MemoryPath() string {
	if c.MemoryFile == "" {
		return ""
	}
	if filepath.IsAbs(c.MemoryFile) {
		return c.MemoryFile
	}
	return filepath.Join(c.DataDir, c.MemoryFile)
}

// Validate checks the shard list and the log level.
func (c *ServerConfig) Validate() error {
	if len(c.Shards) == 0 {
		return fmt.Errorf("no shards configured")
	}
	seen := make(map[uint64]bool, len(c.Shards))
	stable := 0
	for _, shard := range c.Shards {
		if seen[shard.ShardID] {
			return fmt.Errorf("shard %d configured twice", shard.ShardID)
		}
		seen[shard.ShardID] = true

		switch shard.Type {
		case ShardTypeStable:
			stable++
		case ShardTypeHeap:
		default:
			return fmt.Errorf("invalid type %q for shard %d, must be %s or %s", shard.Type, shard.ShardID, ShardTypeStable, ShardTypeHeap)
		}
	}
	if stable > 1 {
		return fmt.Errorf("%d stable shards configured, at most one is allowed", stable)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(max(1, c.Transport.WorkersPerConn)))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Storage
	addSection("Storage")
	if path := c.MemoryPath(); path != "" {
		addField("Memory File", path)
	} else {
		addField("Memory File", "none (stable shard is not durable)")
	}
	addField("Bucket Size", fmt.Sprintf("%d pages", c.BucketSizeInPages))
	addField("Node Size", fmt.Sprintf("%d bytes", c.NodeBytes))
	if c.MaxRecordSize > 0 {
		addField("Max Record Size", fmt.Sprintf("%d bytes", c.MaxRecordSize))
	} else {
		addField("Max Record Size", "unbounded")
	}

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		addField(strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the connection settings of the client transports.
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	TCPNoDelay             bool
	TCPKeepAliveSec        int
	WriteBufferSize        int
	ReadBufferSize         int
}

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
