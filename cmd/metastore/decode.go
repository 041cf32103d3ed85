package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nainya/metastore/pkg/metadata"
)

func newDecodeKeyCommand(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "decode-key <hex>",
		Short: "Decode a stored metadata row key",
		Long: `
Decodes a hex encoded value or index row key and prints its row kind,
target type, entity, attribute key and index term. Versioned entity types
and the default version are taken from the configuration file.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			rowKey, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(args[0]), "0x"))
			if err != nil {
				return fmt.Errorf("row key is not hex: %w", err)
			}
			return decodeKey(stdout, metadata.NewKeyScheme(cfg.KeyScheme()), rowKey)
		},
	}
}

func decodeKey(w io.Writer, ks *metadata.KeyScheme, rowKey []byte) error {
	info, err := ks.DescribeRow(rowKey)
	if err != nil {
		return fmt.Errorf("decode %x: %w", rowKey, err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "kind\t%s\n", info.Kind)
	fmt.Fprintf(tw, "type\t%s\n", info.TargetType)
	fmt.Fprintf(tw, "entity\t%s\n", info.Entity)
	fmt.Fprintf(tw, "key\t%s\n", info.Key)
	if info.Kind == metadata.IndexRow {
		fmt.Fprintf(tw, "term\t%s\n", info.Term)
	}
	return tw.Flush()
}
