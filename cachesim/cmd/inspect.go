package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <recording.sqlite3>",
	Short: "Summarize a recording made with --record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		return summarizeRecording(cmd.Context(), cmd.OutOrStdout(), reader)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

type recordingSummary struct {
	accesses   int
	hits       int
	evictions  int
	storesKind map[string]int
	execInfo   []datarecording.ExecInfo
}

func readSummary(
	ctx context.Context,
	reader datarecording.DataReader,
) (recordingSummary, error) {
	s := recordingSummary{storesKind: make(map[string]int)}

	reader.MapTable(datarecording.AccessTableName, datarecording.AccessEntry{})
	reader.MapTable(datarecording.StoreTableName, datarecording.StoreEntry{})
	reader.MapTable(datarecording.ExecInfoTableName, datarecording.ExecInfo{})

	var err error

	_, s.accesses, err = reader.Query(ctx, datarecording.AccessTableName,
		datarecording.QueryParams{Limit: 1})
	if err != nil {
		return s, err
	}

	_, s.hits, err = reader.Query(ctx, datarecording.AccessTableName,
		datarecording.QueryParams{Where: "Hit = ?", Args: []any{true}, Limit: 1})
	if err != nil {
		return s, err
	}

	_, s.evictions, err = reader.Query(ctx, datarecording.AccessTableName,
		datarecording.QueryParams{Where: "Evicted = ?", Args: []any{true}, Limit: 1})
	if err != nil {
		return s, err
	}

	stores, _, err := reader.Query(ctx, datarecording.StoreTableName,
		datarecording.QueryParams{})
	if err != nil {
		return s, err
	}

	for _, e := range stores {
		s.storesKind[e.(*datarecording.StoreEntry).Kind]++
	}

	infos, _, err := reader.Query(ctx, datarecording.ExecInfoTableName,
		datarecording.QueryParams{})
	if err != nil {
		return s, err
	}

	for _, e := range infos {
		s.execInfo = append(s.execInfo, *e.(*datarecording.ExecInfo))
	}

	return s, nil
}

func summarizeRecording(
	ctx context.Context,
	w io.Writer,
	reader datarecording.DataReader,
) error {
	s, err := readSummary(ctx, reader)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for _, info := range s.execInfo {
		fmt.Fprintf(tw, "%s\t%s\n", info.Property, info.Value)
	}

	fmt.Fprintf(tw, "accesses\t%d\n", s.accesses)
	fmt.Fprintf(tw, "hits\t%d\n", s.hits)
	fmt.Fprintf(tw, "misses\t%d\n", s.accesses-s.hits)
	fmt.Fprintf(tw, "evictions\t%d\n", s.evictions)

	for _, kind := range []cache.StoreKind{
		cache.StoreWriteThrough, cache.StoreNoWriteAllocate,
		cache.StoreEvictWriteBack, cache.StoreFlushWriteBack,
	} {
		fmt.Fprintf(tw, "%s\t%d\n", kind, s.storesKind[string(kind)])
	}

	return tw.Flush()
}
