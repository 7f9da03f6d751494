package emballoc

import "os"

// Settings configures a pool at creation time. The numeric fields and
// flags are copied into the pool's settings record and are immutable
// afterwards; the callback is process-local state carried on the handle.
type Settings struct {
	// TotalSize is the user-declared usable size in bytes. It is
	// recomputed from the per-class block counts at creation; a
	// mismatch is recoverable and surfaces InconsistentSettings.
	TotalSize uint64
	// Per-class block counts.
	Num32BytesBlocks  uint64
	Num64BytesBlocks  uint64
	Num128BytesBlocks uint64
	Num256BytesBlocks uint64
	Num512BytesBlocks uint64
	Num1KBytesBlocks  uint64
	Num2KBytesBlocks  uint64
	Num4KBytesBlocks  uint64
	// Threadsafe guards every mutating call with the pool mutex.
	Threadsafe bool
	// FullOverflowChecks verifies the poison fill of every unused byte
	// touched by an allocation, free or reallocation, not just the
	// markers and counters.
	FullOverflowChecks bool
	// InitAllocatedMemory zero-fills payloads on allocation and on
	// in-place reallocation growth.
	InitAllocatedMemory bool
	// VerboseTrace appends an operation trace (and post-operation pool
	// dumps) to the dump file for Create, Malloc, Free and Realloc. Only
	// meaningful together with ErrorDumpFileName.
	VerboseTrace bool
	// ErrorCallback, when set, receives every recorded error.
	ErrorCallback ErrorCallback
	// ErrorDumpFileName, when non-empty, names the file that receives
	// error messages and pool hex dumps. The file is truncated when the
	// pool is created. Truncated to 127 bytes on the pool record.
	ErrorDumpFileName string
}

// blockCount returns the configured number of blocks for a class index.
func (s *Settings) blockCount(idx int) uint64 {
	switch idx {
	case 0:
		return s.Num32BytesBlocks
	case 1:
		return s.Num64BytesBlocks
	case 2:
		return s.Num128BytesBlocks
	case 3:
		return s.Num256BytesBlocks
	case 4:
		return s.Num512BytesBlocks
	case 5:
		return s.Num1KBytesBlocks
	case 6:
		return s.Num2KBytesBlocks
	case 7:
		return s.Num4KBytesBlocks
	}
	return 0
}

// setBlockCount stores the block count for a class index.
func (s *Settings) setBlockCount(idx int, n uint64) {
	switch idx {
	case 0:
		s.Num32BytesBlocks = n
	case 1:
		s.Num64BytesBlocks = n
	case 2:
		s.Num128BytesBlocks = n
	case 3:
		s.Num256BytesBlocks = n
	case 4:
		s.Num512BytesBlocks = n
	case 5:
		s.Num1KBytesBlocks = n
	case 6:
		s.Num2KBytesBlocks = n
	case 7:
		s.Num4KBytesBlocks = n
	}
}

// sanitize recomputes TotalSize from the class counts and truncates the
// configured dump file, so stale dumps never mix with the new pool's.
// Returns whether the declared total already matched.
func (s *Settings) sanitize() bool {
	initial := s.TotalSize
	s.TotalSize = 0
	for i := 0; i < numClasses; i++ {
		s.TotalSize += s.blockCount(i) * uint64(classDataSizes[i])
	}

	if len(s.ErrorDumpFileName) >= dumpFileNameSize {
		s.ErrorDumpFileName = s.ErrorDumpFileName[:dumpFileNameSize-1]
	}
	if s.ErrorDumpFileName != "" {
		if f, err := os.Create(s.ErrorDumpFileName); err == nil {
			f.Close()
		}
	}

	return s.TotalSize == initial
}

// MemoryRequirements returns the backing-region size a pool created
// from these settings will occupy: the control sections, the per-block
// control overhead and the usable total recomputed from the class
// counts. The receiver is not modified.
func (s *Settings) MemoryRequirements() int {
	c := *s
	c.TotalSize = 0
	for i := 0; i < numClasses; i++ {
		c.TotalSize += c.blockCount(i) * uint64(classDataSizes[i])
	}
	return c.memoryRequirements()
}

// memoryRequirements returns the backing-region size: the control
// sections, per-block control overhead and the usable total.
func (s *Settings) memoryRequirements() int {
	var totalBlocks uint64
	for i := 0; i < numClasses; i++ {
		totalBlocks += s.blockCount(i)
	}
	return controlSize + int(totalBlocks)*blockControlSize + int(s.TotalSize)
}

// Field offsets inside the settings record, relative to settingsOffset.
const (
	setTotalSizeOffset   = 0
	setBlockCountsOffset = wordSize
	setThreadsafeOffset  = setBlockCountsOffset + numClasses*wordSize
	setFullChecksOffset  = setThreadsafeOffset + wordSize
	setInitMemoryOffset  = setFullChecksOffset + wordSize
	setDumpNameOffset    = setInitMemoryOffset + wordSize
	setVerboseOffset     = setDumpNameOffset + dumpFileNameSize
)

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// writeSettings encodes the sanitized settings into the pool record.
func (p *Pool) writeSettings(s *Settings) {
	base := settingsOffset
	p.setWord(base+setTotalSizeOffset, s.TotalSize)
	for i := 0; i < numClasses; i++ {
		p.setWord(base+setBlockCountsOffset+i*wordSize, s.blockCount(i))
	}
	p.setWord(base+setThreadsafeOffset, boolWord(s.Threadsafe))
	p.setWord(base+setFullChecksOffset, boolWord(s.FullOverflowChecks))
	p.setWord(base+setInitMemoryOffset, boolWord(s.InitAllocatedMemory))

	name := p.mem[base+setDumpNameOffset : base+setDumpNameOffset+dumpFileNameSize]
	for i := range name {
		name[i] = 0
	}
	copy(name, s.ErrorDumpFileName)

	p.setWord(base+setVerboseOffset, boolWord(s.VerboseTrace))
}

// readSettings decodes the pool record into out. The callback is not
// part of the record; the caller reattaches it from the handle.
func (p *Pool) readSettings(out *Settings) {
	base := settingsOffset
	*out = Settings{}
	out.TotalSize = p.word(base + setTotalSizeOffset)
	for i := 0; i < numClasses; i++ {
		out.setBlockCount(i, p.word(base+setBlockCountsOffset+i*wordSize))
	}
	out.Threadsafe = p.word(base+setThreadsafeOffset) != 0
	out.FullOverflowChecks = p.word(base+setFullChecksOffset) != 0
	out.InitAllocatedMemory = p.word(base+setInitMemoryOffset) != 0
	out.VerboseTrace = p.word(base+setVerboseOffset) != 0

	name := p.mem[base+setDumpNameOffset : base+setDumpNameOffset+dumpFileNameSize]
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	out.ErrorDumpFileName = string(name[:n])
}

// Fast accessors for the settings consulted on the hot paths.

func (p *Pool) fullOverflowChecks() bool {
	return p.word(settingsOffset+setFullChecksOffset) != 0
}

func (p *Pool) initAllocatedMemory() bool {
	return p.word(settingsOffset+setInitMemoryOffset) != 0
}

func (p *Pool) threadsafe() bool {
	return p.word(settingsOffset+setThreadsafeOffset) != 0
}

func (p *Pool) verboseTrace() bool {
	return p.word(settingsOffset+setVerboseOffset) != 0
}

func (p *Pool) dumpFileName() string {
	base := settingsOffset + setDumpNameOffset
	name := p.mem[base : base+dumpFileNameSize]
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	return string(name[:n])
}

func (p *Pool) totalSize() int {
	return int(p.word(settingsOffset + setTotalSizeOffset))
}

// poolSize recomputes the backing-region size from the stored record.
func (p *Pool) poolSize() int {
	var totalBlocks, totalBytes uint64
	for i := 0; i < numClasses; i++ {
		n := p.word(settingsOffset + setBlockCountsOffset + i*wordSize)
		totalBlocks += n
		totalBytes += n * uint64(classDataSizes[i])
	}
	return controlSize + int(totalBlocks)*blockControlSize + int(totalBytes)
}
