package cmd

import (
	"fmt"
	"os"

	"github.com/pramitgaha/map-error/cmd/kv"
	"github.com/pramitgaha/map-error/cmd/serve"
	"github.com/pramitgaha/map-error/cmd/snapshot"
	"github.com/pramitgaha/map-error/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "smap",
		Short: "durable ordered map of users",
		Long: fmt.Sprintf(`smap (v%s)

A durable ordered map from 128 bit keys to user records. The map lives in a
memory file managed in fixed size buckets and survives restarts and upgrades
of the server.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of smap",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smap v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(snapshot.SnapshotCommands)
	RootCmd.AddCommand(versionCmd)

	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (binary, cbor, json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
