package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var fromStart bool

	cmd := &cobra.Command{
		Use:   "watch <dump-file>",
		Short: "Follow a pool's error dump stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchDump(args[0], fromStart)
		},
	}

	cmd.Flags().BoolVar(&fromStart, "from-start", false,
		"print the existing dump contents before following")

	return cmd
}

// watchDump tails the dump file the pool appends to. The parent
// directory is watched, not the file: a new pool creates the file when
// it is absent and truncates it in place otherwise, and the directory
// watch also sees a file that did not exist when watching began.
func watchDump(path string, fromStart bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	var offset int64
	if !fromStart {
		if info, err := os.Stat(abs); err == nil {
			offset = info.Size()
		}
	}
	offset = drainDump(abs, offset)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("file", abs).Msg("following dump stream")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != abs {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				// Newly created: read it from the start. An in-place
				// truncate is caught by drainDump's shrinkage check.
				offset = 0
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				offset = drainDump(abs, offset)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")
		}
	}
}

// drainDump copies everything past offset to stdout and returns the new
// offset. Shrinkage (a truncate raced past us) restarts from zero.
func drainDump(path string, offset int64) int64 {
	f, err := os.Open(path)
	if err != nil {
		return offset
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset
	}

	n, _ := io.Copy(os.Stdout, f)
	return offset + n
}
