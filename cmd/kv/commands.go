package kv

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pramitgaha/map-error/cmd/util"
	"github.com/pramitgaha/map-error/lib/users"
	"github.com/spf13/cobra"
	"lukechampine.com/uint128"
)

var (
	insertCmd = &cobra.Command{
		Use:   "insert [key] [name] [block...]",
		Short: "Inserts a user, every block is given as a string",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseKey(args[0])
			if err != nil {
				return err
			}
			user := users.User{Name: args[1]}
			for _, block := range args[2:] {
				user.FavNumbers = append(user.FavNumbers, []byte(block))
			}

			replaced, err := rpcStore.Insert(key, user)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, replaced=%t\n", key, replaced)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the user stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseKey(args[0])
			if err != nil {
				return err
			}
			user, ok, err := rpcStore.Get(key)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("key=%s, found=false\n", key)
				return nil
			}
			fmt.Printf("key=%s, found=true, %s\n", key, user)
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [key]",
		Short: "Removes the user stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseKey(args[0])
			if err != nil {
				return err
			}
			removed, err := rpcStore.Remove(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, removed=%t\n", key, removed)
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseKey(args[0])
			if err != nil {
				return err
			}
			found, err := rpcStore.Has(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [from] [limit]",
		Short: "Lists users in key order, starting at from (default 0), at most limit (default all)",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from := uint128.Zero
			limit := 0
			if len(args) > 0 {
				var err error
				if from, err = util.ParseKey(args[0]); err != nil {
					return err
				}
			}
			if len(args) > 1 {
				var err error
				if limit, err = strconv.Atoi(args[1]); err != nil || limit < 0 {
					return fmt.Errorf("limit must be a positive number: %s", args[1])
				}
			}

			entries, err := rpcStore.Scan(from, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("key=%s, %s\n", e.Key, e.User)
			}
			fmt.Printf("%d users\n", len(entries))
			return nil
		},
	}
	lenCmd = &cobra.Command{
		Use:   "len",
		Short: "Prints the number of users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcStore.Len()
			if err != nil {
				return err
			}
			fmt.Printf("len=%d\n", n)
			return nil
		},
	}
	seedCmd = &cobra.Command{
		Use:   "seed [count]",
		Short: fmt.Sprintf("Writes the demo users 0..count-1 (default %d), user i holds i+1 blocks of %d bytes", users.DefaultSeedCount, users.SeedBlockSize),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := uint64(users.DefaultSeedCount)
			if len(args) > 0 {
				var err error
				if count, err = strconv.ParseUint(args[0], 10, 64); err != nil {
					return fmt.Errorf("count must be a number: %w", err)
				}
			}
			replaced, err := rpcStore.Seed(count)
			if err != nil {
				return err
			}
			fmt.Printf("seeded %d users, %d replaced\n", count, replaced)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints the engine information of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)
