package emballoc

import "encoding/binary"

// The pool is a single contiguous byte region. Control data sits at the
// front in a fixed order (head marker, settings record, class table, aux
// record), the class block regions follow, and the tail marker closes
// the region:
//
//	[0, A)           pool head marker
//	[A, A+S)         settings record
//	[A+S, A+S+C)     class table
//	[A+S+C, ..+X)    aux record (mutex state, last error)
//	[.., total-A)    class regions, ascending block size
//	[total-A, total) pool tail marker
//
// All section sizes are multiples of alignAmount.
const (
	// settingsRecordSize is the on-pool size of the encoded Settings:
	// 12 words (total size, 8 class counts, 3 flags), the dump file
	// name buffer and the verbose-trace word, aligned.
	settingsRecordSize = (12*wordSize + dumpFileNameSize + wordSize +
		alignAmount - 1) &^ (alignAmount - 1)

	// classEntrySize is the on-pool size of one class table entry:
	// data size, total blocks, occupied blocks, start, last, first-free
	// and last-free offsets.
	classEntrySize = 7 * wordSize

	// classTableSize is the aligned size of the full class table.
	classTableSize = (numClasses*classEntrySize + alignAmount - 1) &^
		(alignAmount - 1)

	// auxRecordSize is the aligned size of the aux record: the reserved
	// mutex slot, the mutex-init flag word, the last error word and the
	// last error message buffer.
	auxRecordSize = (alignAmount + 2*wordSize + errorMessageSize +
		alignAmount - 1) &^ (alignAmount - 1)

	settingsOffset   = alignAmount
	classTableOffset = settingsOffset + settingsRecordSize
	auxOffset        = classTableOffset + classTableSize
	firstBlockOffset = auxOffset + auxRecordSize

	// controlSize is everything except the block regions: the leading
	// control sections plus the tail marker.
	controlSize = firstBlockOffset + alignAmount
)

// Offsets of the aux record fields, relative to auxOffset. The mutex
// slot is reserved space only: the Go mutex lives on the Pool handle,
// the slot keeps the record layout stable for external introspection.
const (
	auxMutexSlotOffset = 0
	auxMutexInitOffset = alignAmount
	auxLastErrorOffset = auxMutexInitOffset + wordSize
	auxMessageOffset   = auxLastErrorOffset + wordSize
)

// word reads the little-endian machine word at off.
func (p *Pool) word(off int) uint64 {
	return binary.LittleEndian.Uint64(p.mem[off : off+wordSize])
}

// setWord writes the little-endian machine word at off.
func (p *Pool) setWord(off int, v uint64) {
	binary.LittleEndian.PutUint64(p.mem[off:off+wordSize], v)
}

// fill sets size bytes starting at off to value.
func (p *Pool) fill(off, size int, value byte) {
	region := p.mem[off : off+size]
	for i := range region {
		region[i] = value
	}
}
