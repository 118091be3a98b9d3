// Package cmd provides the command-line interface of cachesim.
package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

var (
	logLevel   string
	configPath string
)

// envDefaults maps flags to the environment variables that provide their
// defaults. Variables can be set in a .env file in the working directory.
var envDefaults = map[string]string{
	"log-level": "CACHESIM_LOG_LEVEL",
	"config":    "CACHESIM_CONFIG",
	"port":      "CACHESIM_PORT",
	"record":    "CACHESIM_RECORD",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cachesim",
	Short: "cachesim simulates a set-associative cache.",
	Long: `cachesim simulates a set-associative cache with configurable ` +
		`geometry, replacement, write and write-miss policies. It can serve ` +
		`the cache over HTTP, replay access traces, and check configs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := applyEnvDefaults(cmd.Flags()); err != nil {
			return err
		}

		return setUpLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"YAML file with the cache config")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	loadDotEnv(".env")

	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func loadDotEnv(path string) {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).WithField("file", path).Warn("cannot load env file")
	}
}

func applyEnvDefaults(flags *pflag.FlagSet) error {
	for name, env := range envDefaults {
		flag := flags.Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}

		value, ok := os.LookupEnv(env)
		if !ok {
			continue
		}

		if err := flags.Set(name, value); err != nil {
			return err
		}
	}

	return nil
}

func setUpLogging() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return nil
}
