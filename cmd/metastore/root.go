package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/nainya/metastore/internal/config"
)

// NewRootCommand builds the metastore command tree
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "metastore",
		Short: "metastore stores properties and tags of entities",
		Long: `metastore keeps entity metadata in an embedded sorted key-value store.

Every property and tag is written as a value row plus a set of index rows
whose keys are length-prefixed composite keys. The server exposes the
metadata over gRPC; decode-key inspects stored row keys offline.
`,
		SilenceUsage: true,
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")

	rc.AddCommand(newServeCommand(stdout, stderr))
	rc.AddCommand(newDecodeKeyCommand(stdout, stderr))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// loadConfig reads the file named by the persistent --config flag
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}
