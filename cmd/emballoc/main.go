// Command emballoc drives and inspects emb-alloc memory pools: bench
// runs randomized allocation workloads, layout prints the pool layout a
// settings file produces, and watch follows a pool's error dump stream.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	log zerolog.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "emballoc",
		Short: "Drive and inspect emb-alloc memory pools",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).With().Timestamp().Logger()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"pool settings file (TOML)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	root.AddCommand(newBenchCommand())
	root.AddCommand(newLayoutCommand())
	root.AddCommand(newWatchCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
