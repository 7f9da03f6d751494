package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	emballoc "github.com/oandronachi/emb-alloc"
)

func newBenchCommand() *cobra.Command {
	var (
		ops     int
		seed    int64
		maxSize int
		workers int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a randomized malloc/free/realloc workload against a pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runBench(cfg, ops, seed, maxSize, workers)
		},
	}

	cmd.Flags().IntVar(&ops, "ops", 100000, "number of operations to run")
	cmd.Flags().Int64Var(&seed, "seed", 1, "workload random seed")
	cmd.Flags().IntVar(&maxSize, "max-size", 4096, "largest allocation request in bytes")
	cmd.Flags().IntVar(&workers, "workers", 1,
		"concurrent workload goroutines (forces a threadsafe pool when > 1)")

	return cmd
}

func runBench(cfg *poolConfig, ops int, seed int64, maxSize, workers int) error {
	if workers > 1 {
		cfg.Threadsafe = true
	}

	settings := cfg.settings()
	errorCounts := make(map[emballoc.ErrorCode]int)
	// The callback fires under the pool lock, so the plain map is safe
	// even with concurrent workers.
	settings.ErrorCallback = func(code emballoc.ErrorCode, message string) {
		errorCounts[code]++
		log.Debug().Str("code", code.String()).Msg(message)
	}

	pool := emballoc.Create(settings)
	if pool == nil {
		return fmt.Errorf("could not create the pool")
	}
	defer pool.Destroy()

	log.Info().
		Int("ops", ops).
		Int("workers", workers).
		Int("backing_bytes", settings.MemoryRequirements()).
		Msg("starting workload")

	start := time.Now()
	if workers <= 1 {
		runWorkload(pool, rand.New(rand.NewSource(seed)), ops, maxSize)
	} else {
		done := make(chan struct{})
		for w := 0; w < workers; w++ {
			go func(w int) {
				defer func() { done <- struct{}{} }()
				runWorkload(pool, rand.New(rand.NewSource(seed+int64(w))),
					ops/workers, maxSize)
			}(w)
		}
		for w := 0; w < workers; w++ {
			<-done
		}
	}
	elapsed := time.Since(start)

	stats := pool.Stats()
	printClassTable(stats)

	log.Info().
		Dur("elapsed", elapsed).
		Float64("ops_per_sec", float64(ops)/elapsed.Seconds()).
		Msg("workload finished")
	for code, n := range errorCounts {
		log.Warn().Str("code", code.String()).Int("count", n).Msg("errors recorded")
	}

	return nil
}

// runWorkload mixes allocations, frees and reallocations, keeping a
// window of live pointers so the pool stays partially occupied.
func runWorkload(pool *emballoc.Pool, rng *rand.Rand, ops, maxSize int) {
	var live []emballoc.Pointer

	for i := 0; i < ops; i++ {
		switch action := rng.Intn(10); {
		case action < 5 || len(live) == 0:
			size := 1 + rng.Intn(maxSize)
			if ptr := pool.Malloc(size); ptr != emballoc.NilPointer {
				fillPayload(pool.Bytes(ptr), byte(i))
				live = append(live, ptr)
			}
		case action < 8:
			idx := rng.Intn(len(live))
			pool.Free(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		default:
			idx := rng.Intn(len(live))
			size := 1 + rng.Intn(maxSize)
			if ptr := pool.Realloc(live[idx], size); ptr != emballoc.NilPointer {
				live[idx] = ptr
			} else {
				// A failed growing realloc released the original.
				live[idx] = live[len(live)-1]
				live = live[:len(live)-1]
			}
		}
	}

	for _, ptr := range live {
		pool.Free(ptr)
	}
}

func fillPayload(buf []byte, value byte) {
	for i := range buf {
		buf[i] = value
	}
}

func printClassTable(stats emballoc.Stats) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Class", "Block Size", "Blocks", "Occupied", "Free Bytes"})

	for i, class := range stats.Classes {
		table.Append([]string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%d", class.DataSize),
			fmt.Sprintf("%d", class.TotalBlocks),
			fmt.Sprintf("%d", class.OccupiedBlocks),
			fmt.Sprintf("%d", class.FreeBytes),
		})
	}
	table.SetFooter([]string{"", "", "", "total free",
		fmt.Sprintf("%d / %d", stats.FreeBytes, stats.TotalSize)})

	table.Render()
}
