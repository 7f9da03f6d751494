package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newLayoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Print the pool layout a settings file produces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			settings := cfg.settings()

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Class", "Block Size", "Blocks", "Capacity"})

			classSizes := []uint64{32, 64, 128, 256, 512, 1024, 2048, 4096}
			counts := []uint64{
				cfg.Num32BytesBlocks, cfg.Num64BytesBlocks,
				cfg.Num128BytesBlocks, cfg.Num256BytesBlocks,
				cfg.Num512BytesBlocks, cfg.Num1KBytesBlocks,
				cfg.Num2KBytesBlocks, cfg.Num4KBytesBlocks,
			}

			var total uint64
			for i, size := range classSizes {
				capacity := size * counts[i]
				total += capacity
				table.Append([]string{
					fmt.Sprintf("%d", i),
					fmt.Sprintf("%d", size),
					fmt.Sprintf("%d", counts[i]),
					fmt.Sprintf("%d", capacity),
				})
			}

			backing := settings.MemoryRequirements()
			table.SetFooter([]string{"", "", "usable / backing",
				fmt.Sprintf("%d / %d", total, backing)})
			table.Render()

			if cfg.TotalSize != 0 && cfg.TotalSize != total {
				log.Warn().
					Uint64("declared", cfg.TotalSize).
					Uint64("computed", total).
					Msg("declared total size disagrees with the class counts; " +
						"creation will record InconsistentSettings")
			}

			return nil
		},
	}
}
