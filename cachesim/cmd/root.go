// Package cmd provides the command-line interface for cachesim.
package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var logLevel string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cachesim",
	Short: "cachesim simulates multi-level set-associative cache hierarchies.",
	Long: `cachesim replays a memory access trace through a hierarchy of ` +
		`set-associative LRU caches in front of a fixed-latency memory and ` +
		`reports the latency and the hit and miss rates of every level.`,
	SilenceUsage:      true,
	PersistentPreRunE: setUp,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (trace, debug, info, warn, error). "+
			"Defaults to $CACHESIM_LOG_LEVEL if set.")
}

// setUp loads .env and applies the environment to flags that were not given.
func setUp(cmd *cobra.Command, _ []string) error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if !cmd.Flags().Changed("log-level") {
		if v, ok := os.LookupEnv("CACHESIM_LOG_LEVEL"); ok {
			logLevel = v
		}
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	logrus.SetLevel(level)

	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
