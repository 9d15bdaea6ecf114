package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pramitgaha/map-error/cmd/util"
	"github.com/pramitgaha/map-error/lib/stable/memory"
	"github.com/pramitgaha/map-error/lib/state"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// fs is the file system of the memory file and the snapshots
	fs afero.Fs = afero.NewOsFs()

	// SnapshotCommands represents the snapshot command group
	SnapshotCommands = &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the durable map while the server is stopped",
		Long: `Export or import the durable map while the server is stopped.
The memory file must not be used by a running server at the same time.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
	}
	saveCmd = &cobra.Command{
		Use:   "save [file]",
		Short: "Writes all users of the durable map to a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := save(memoryPath(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("saved %d users to %s\n", n, args[0])
			return nil
		},
	}
	loadCmd = &cobra.Command{
		Use:   "load [file]",
		Short: "Inserts all users of a snapshot file into the durable map, replacing existing keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := load(memoryPath(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("map holds %d users after loading %s\n", n, args[0])
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	key := "data-dir"
	SnapshotCommands.PersistentFlags().String(key, "data", util.WrapString("Directory for the memory file"))

	key = "memory-file"
	SnapshotCommands.PersistentFlags().String(key, "smap.mem", util.WrapString("The file that backs the stable shard, relative to data-dir"))

	SnapshotCommands.AddCommand(saveCmd)
	SnapshotCommands.AddCommand(loadCmd)
}

// memoryPath resolves the memory file like the server does
func memoryPath() string {
	file := viper.GetString("memory-file")
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(viper.GetString("data-dir"), file)
}

// openState attaches to an existing memory file
func openState(path string) (*state.State, error) {
	if exists, err := afero.Exists(fs, path); err != nil {
		return nil, err
	} else if !exists {
		return nil, fmt.Errorf("memory file %s does not exist", path)
	}

	mem, err := memory.OpenFileMemory(fs, path, nil)
	if err != nil {
		return nil, err
	}
	st, err := state.Open(mem, nil)
	if err != nil {
		_ = mem.Close()
		return nil, err
	}
	return st, nil
}

// save writes the map in path to the snapshot file out and returns the number of users
func save(path, out string) (uint64, error) {
	st, err := openState(path)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	if err := fs.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return 0, err
	}
	f, err := fs.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	if err := st.DB().Save(f); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return st.DB().Len(), nil
}

// load merges the snapshot file in into the map in path and returns the map length
func load(path, in string) (uint64, error) {
	st, err := openState(path)
	if err != nil {
		return 0, err
	}

	f, err := fs.Open(in)
	if err != nil {
		_ = st.Close()
		return 0, err
	}
	defer f.Close()

	if err := st.DB().Load(f); err != nil {
		_ = st.Close()
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	n := st.DB().Len()
	return n, st.Close()
}
