package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/monitoring"
)

var (
	runConfig     *configFlags
	tracePath     string
	traceFormat   string
	runVerbose    bool
	runJSON       bool
	runFlush      bool
	runRecordPath string
	runMonitor    bool
	runPort       int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a trace of accesses and print the statistics.",
	Long: `Replay a trace of accesses and print the statistics. A text trace ` +
		`has one access per line ("R <address>", "W <address> <value> ` +
		`[writePolicy [missPolicy]]" or "F" to flush). A YAML trace is a ` +
		`list of {op, address, value, writePolicy, missPolicy}.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := runConfig.resolveConfig(cmd)
		if err != nil {
			return err
		}

		steps, err := loadTrace(tracePath, traceFormat)
		if err != nil {
			return err
		}

		comp, err := buildCache(c, runRecordPath)
		if err != nil {
			return err
		}

		var bar *monitoring.ProgressBar

		if runMonitor {
			m := monitoring.NewMonitor(comp).WithPortNumber(runPort)
			if _, err := m.StartServer(cmd.Context()); err != nil {
				return err
			}

			bar = m.CreateProgressBar("Replay "+filepath.Base(tracePath),
				uint64(len(steps)))
			defer m.CompleteProgressBar(bar)
		}

		out := cmd.OutOrStdout()

		err = replay(comp, steps, replayOptions{
			out:     out,
			verbose: runVerbose,
			onStep: func() {
				if bar != nil {
					bar.IncrementFinished(1)
				}
			},
		})
		if err != nil {
			return err
		}

		if runFlush {
			result := comp.Flush()
			logrus.WithField("flushed", result.FlushedBlocks).
				Info("cache flushed after replay")
		}

		return printStats(out, comp.Stats(), runJSON)
	},
}

func init() {
	runConfig = addConfigFlags(runCmd)

	runCmd.Flags().StringVarP(&tracePath, "trace", "t", "",
		"Trace file to replay")
	runCmd.Flags().StringVar(&traceFormat, "format", "",
		"Trace format (text or yaml); guessed from the file extension "+
			"if not set")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false,
		"Print every access")
	runCmd.Flags().BoolVar(&runJSON, "json", false,
		"Print the statistics as JSON")
	runCmd.Flags().BoolVar(&runFlush, "flush", false,
		"Flush the cache after the replay")
	runCmd.Flags().StringVar(&runRecordPath, "record", "",
		"Record every access into <path>.sqlite3")
	runCmd.Flags().BoolVar(&runMonitor, "monitor", false,
		"Serve the monitoring API during the replay")
	runCmd.Flags().IntVar(&runPort, "port", 0,
		"Port of the monitoring API (random if 0)")

	err := runCmd.MarkFlagRequired("trace")
	dieOnErr(err)

	rootCmd.AddCommand(runCmd)
}

func loadTrace(path, format string) ([]traceStep, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = "yaml"
		default:
			format = "text"
		}
	}

	switch format {
	case "text":
		return parseTextTrace(file)
	case "yaml":
		return parseYAMLTrace(file)
	default:
		return nil, fmt.Errorf("unknown trace format %q", format)
	}
}

type replayOptions struct {
	out     io.Writer
	verbose bool
	onStep  func()
}

func replay(comp *cache.Comp, steps []traceStep, opts replayOptions) error {
	for i, step := range steps {
		var (
			result cache.AccessResult
			err    error
		)

		switch step.kind {
		case stepRead:
			result, err = comp.Read(step.address)
		case stepWrite:
			result, err = comp.Write(step.address, step.value,
				step.writePolicy, step.missPolicy)
		case stepFlush:
			flushed := comp.Flush()
			if opts.verbose {
				fmt.Fprintf(opts.out, "FLUSH %d blocks\n", flushed.FlushedBlocks)
			}
		}

		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		if opts.verbose && step.kind != stepFlush {
			printAccess(opts.out, result)
		}

		if opts.onStep != nil {
			opts.onStep()
		}
	}

	return nil
}

func printAccess(w io.Writer, r cache.AccessResult) {
	fmt.Fprintf(w, "%-5s 0x%08x tag=0x%x set=%d off=%d way=%d %s",
		r.Operation, r.Address, r.Tag, r.SetIndex, r.Offset, r.WayIndex,
		r.Action)

	if r.Evicted {
		fmt.Fprintf(w, " evicted=0x%x", r.EvictedTag)
		if r.EvictedDirty {
			fmt.Fprint(w, " (dirty)")
		}
	}

	fmt.Fprintln(w)
}

func printStats(w io.Writer, s cache.Statistics, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(s)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "accesses\t%d\n", s.Accesses())
	fmt.Fprintf(tw, "reads\t%d\n", s.Reads)
	fmt.Fprintf(tw, "writes\t%d\n", s.Writes)
	fmt.Fprintf(tw, "hits\t%d\n", s.Hits)
	fmt.Fprintf(tw, "misses\t%d\n", s.Misses)
	fmt.Fprintf(tw, "hit rate\t%.4f\n", s.HitRate())
	fmt.Fprintf(tw, "evictions\t%d\n", s.Evictions)
	fmt.Fprintf(tw, "write-backs\t%d\n", s.WriteBacks)
	fmt.Fprintf(tw, "store events\t%d\n", s.StoreEvents)

	return tw.Flush()
}

func dieOnErr(err error) {
	if err != nil {
		logrus.Panic(err)
	}
}
