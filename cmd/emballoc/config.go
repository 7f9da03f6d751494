package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	emballoc "github.com/oandronachi/emb-alloc"
)

// poolConfig mirrors emballoc.Settings for TOML settings files.
type poolConfig struct {
	TotalSize           uint64 `toml:"total_size"`
	Num32BytesBlocks    uint64 `toml:"num_32_bytes_blocks"`
	Num64BytesBlocks    uint64 `toml:"num_64_bytes_blocks"`
	Num128BytesBlocks   uint64 `toml:"num_128_bytes_blocks"`
	Num256BytesBlocks   uint64 `toml:"num_256_bytes_blocks"`
	Num512BytesBlocks   uint64 `toml:"num_512_bytes_blocks"`
	Num1KBytesBlocks    uint64 `toml:"num_1k_bytes_blocks"`
	Num2KBytesBlocks    uint64 `toml:"num_2k_bytes_blocks"`
	Num4KBytesBlocks    uint64 `toml:"num_4k_bytes_blocks"`
	Threadsafe          bool   `toml:"threadsafe"`
	FullOverflowChecks  bool   `toml:"full_overflow_checks"`
	InitAllocatedMemory bool   `toml:"init_allocated_memory"`
	VerboseTrace        bool   `toml:"verbose_trace"`
	ErrorDumpFileName   string `toml:"error_dump_file_name"`
}

// defaultConfig is the workload pool used when no settings file is
// given: a spread across all classes with overflow checking on.
func defaultConfig() *poolConfig {
	return &poolConfig{
		Num32BytesBlocks:   64,
		Num64BytesBlocks:   64,
		Num128BytesBlocks:  32,
		Num256BytesBlocks:  32,
		Num512BytesBlocks:  16,
		Num1KBytesBlocks:   16,
		Num2KBytesBlocks:   8,
		Num4KBytesBlocks:   8,
		FullOverflowChecks: true,
	}
}

// loadConfig reads a TOML settings file, or returns the default pool
// when path is empty. Unknown keys are rejected so typos do not
// silently configure an empty class.
func loadConfig(path string) (*poolConfig, error) {
	if path == "" {
		return defaultConfig(), nil
	}

	cfg := &poolConfig{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}

	return cfg, nil
}

// settings converts the file form into allocator settings.
func (c *poolConfig) settings() *emballoc.Settings {
	return &emballoc.Settings{
		TotalSize:           c.TotalSize,
		Num32BytesBlocks:    c.Num32BytesBlocks,
		Num64BytesBlocks:    c.Num64BytesBlocks,
		Num128BytesBlocks:   c.Num128BytesBlocks,
		Num256BytesBlocks:   c.Num256BytesBlocks,
		Num512BytesBlocks:   c.Num512BytesBlocks,
		Num1KBytesBlocks:    c.Num1KBytesBlocks,
		Num2KBytesBlocks:    c.Num2KBytesBlocks,
		Num4KBytesBlocks:    c.Num4KBytesBlocks,
		Threadsafe:          c.Threadsafe,
		FullOverflowChecks:  c.FullOverflowChecks,
		InitAllocatedMemory: c.InitAllocatedMemory,
		VerboseTrace:        c.VerboseTrace,
		ErrorDumpFileName:   c.ErrorDumpFileName,
	}
}
