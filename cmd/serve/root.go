package serve

import (
	cmdUtil "github.com/pramitgaha/map-error/cmd/util"
	"github.com/pramitgaha/map-error/lib/stable/memmgr"
	"github.com/pramitgaha/map-error/rpc/common"
	"github.com/pramitgaha/map-error/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the smap server",
		Long:    `Start the smap server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is SMAP_<flag> (e.g. SMAP_MEMORY_FILE=smap.mem)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "shards"
	ServeCmd.PersistentFlags().String(key, "1:stable", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID:TYPE where TYPE is one of: stable, heap. At most one shard can be stable"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory for the memory file"))

	key = "memory-file"
	ServeCmd.PersistentFlags().String(key, "smap.mem", cmdUtil.WrapString("The file that backs the stable shard, relative to data-dir. If empty, the stable shard is kept in memory and lost on shutdown"))

	key = "bucket-size"
	ServeCmd.PersistentFlags().Uint16(key, memmgr.DefaultBucketSizeInPages, cmdUtil.WrapString("Pages per bucket of the memory manager. Only used when the memory file is created, an existing file keeps its bucket size"))

	key = "node-bytes"
	ServeCmd.PersistentFlags().Uint32(key, 0, cmdUtil.WrapString("Size of a btree node in bytes (0 = default). Only used when the map is created"))

	key = "max-record-size"
	ServeCmd.PersistentFlags().Uint32(key, 0, cmdUtil.WrapString("Largest encoded user in bytes that can be inserted (0 = unbounded)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Read and write timeout of the http transport in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/smap.sock, ...)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address of a separate listener for GET /metrics"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "transport-workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("Requests served concurrently per connection (tcp and unix)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval in seconds (only for tcp, 0 = off)"))

	key = "transport-tcp-linger"
	ServeCmd.PersistentFlags().Int(key, -1, cmdUtil.WrapString("The linger time in seconds (only for tcp, -1 = system default, 0 = discard unsent data)"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket write buffer (in KB, ignored for http)"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket read buffer (in KB, ignored for http)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	shards, err := cmdUtil.ParseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	serveCmdConfig.Shards = shards

	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.MemoryFile = viper.GetString("memory-file")
	serveCmdConfig.BucketSizeInPages = uint16(viper.GetUint("bucket-size"))
	serveCmdConfig.NodeBytes = viper.GetUint32("node-bytes")
	serveCmdConfig.MaxRecordSize = viper.GetUint32("max-record-size")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	serveCmdConfig.Transport = common.ServerTransportConfig{
		WorkersPerConn:  viper.GetInt("transport-workers-per-conn"),
		TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
	}

	return serveCmdConfig.Validate()
}

// run starts the smap server
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	return server.NewRPCServer(*serveCmdConfig, t, s).Serve()
}
