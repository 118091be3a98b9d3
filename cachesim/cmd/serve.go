package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/monitoring"
)

var (
	serveConfig      *configFlags
	servePort        int
	serveOpen        bool
	serveHistorySize int
	serveRecordPath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cache over HTTP.",
	Long: `Serve the cache over HTTP. The API under /api/simulator ` +
		`configures the cache, reads and writes addresses, and reports the ` +
		`state, the statistics and the latest accesses.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := serveConfig.resolveConfig(cmd)
		if err != nil {
			return err
		}

		comp, err := buildCache(c, serveRecordPath)
		if err != nil {
			return err
		}

		m := monitoring.NewMonitor(comp).
			WithPortNumber(servePort).
			WithHistorySize(serveHistorySize)

		ctx, stop := signal.NotifyContext(cmd.Context(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		url, err := m.StartServer(ctx)
		if err != nil {
			return err
		}

		if serveOpen {
			err := browser.OpenURL(url + "/api/simulator/state")
			if err != nil {
				logrus.WithError(err).Warn("cannot open browser")
			}
		}

		<-ctx.Done()
		logrus.Info("shutting down")

		return nil
	},
}

func init() {
	serveConfig = addConfigFlags(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080,
		"Port of the HTTP server (random if 0)")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false,
		"Open the cache state in a browser")
	serveCmd.Flags().IntVar(&serveHistorySize, "history",
		monitoring.DefaultHistorySize, "Number of accesses kept in the history")
	serveCmd.Flags().StringVar(&serveRecordPath, "record", "",
		"Record every access into <path>.sqlite3")

	rootCmd.AddCommand(serveCmd)
}
