package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/mem/cache"
)

var validateConfig *configFlags

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a cache config and print the derived geometry.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := validateConfig.resolveConfig(cmd)
		if err != nil {
			return err
		}

		return printGeometry(cmd.OutOrStdout(), c)
	},
}

func init() {
	validateConfig = addConfigFlags(validateCmd)

	rootCmd.AddCommand(validateCmd)
}

func printGeometry(w io.Writer, c cache.Config) error {
	tagBits := c.AddressWidth - c.OffsetBits() - c.SetIndexBits()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "cache size\t%d B\n", c.CacheSizeBytes)
	fmt.Fprintf(tw, "block size\t%d B\n", c.BlockSizeBytes)
	fmt.Fprintf(tw, "associativity\t%d\n", c.Associativity)
	fmt.Fprintf(tw, "sets\t%d\n", c.NumSets())
	fmt.Fprintf(tw, "blocks\t%d\n", c.NumBlocks())
	fmt.Fprintf(tw, "address bits\t%d\n", c.AddressWidth)
	fmt.Fprintf(tw, "tag bits\t%d\n", tagBits)
	fmt.Fprintf(tw, "set index bits\t%d\n", c.SetIndexBits())
	fmt.Fprintf(tw, "offset bits\t%d\n", c.OffsetBits())
	fmt.Fprintf(tw, "replacement\t%s\n", c.ReplacementPolicy)
	fmt.Fprintf(tw, "write policy\t%s\n", c.WritePolicy)
	fmt.Fprintf(tw, "write miss policy\t%s\n", c.WriteMissPolicy)

	return tw.Flush()
}
