// Package cmd implements the command-line interface of smap. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the smap server
//   - kv: Client commands for the user map (insert, get, scan, seed, perf, ...)
//   - snapshot: Offline export and import of the durable map
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as SMAP_<FLAG> environment variables or in a .env file.
// See smap -help for a list of all commands.
package cmd
