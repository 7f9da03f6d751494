package emballoc

import "bytes"

// Block layout, for a class with data size d:
//
//	[0, A)        block head marker
//	[A, A+w)      run count: valueNotSet when free, else the number of
//	              contiguous blocks in the run starting here
//	[A+w, 2A)     data size: valueNotSet when free, else the requested
//	              allocation size
//	[2A, 2A+d)    payload
//	[2A+d, d+3A)  block tail marker
//
// A run of k blocks keeps one head and one tail: the head and counters
// at the first block, the tail at the end of the k-th block's payload
// region. Everything between is poisoned while the run is live.
const (
	// blockControlSize is the per-block metadata overhead: head marker,
	// the two counters and the tail marker.
	blockControlSize = 3 * alignAmount

	// blockStartControlSize covers the head marker plus both counters.
	blockStartControlSize = 2 * alignAmount

	blockRunCountOffset = alignAmount
	blockDataSizeOffset = alignAmount + wordSize
	blockPayloadOffset  = 2 * alignAmount
)

// blockStride is the distance between consecutive block bases of a
// class with data size d.
func blockStride(dataSize int) int {
	return dataSize + blockControlSize
}

// runPayloadSize is the usable span of a run of count blocks: the
// payloads plus the swallowed metadata of the inner blocks.
func runPayloadSize(dataSize, count int) int {
	return dataSize + (count-1)*blockStride(dataSize)
}

func (p *Pool) blockRunCount(block int) uint64 {
	return p.word(block + blockRunCountOffset)
}

func (p *Pool) setBlockRunCount(block int, v uint64) {
	p.setWord(block+blockRunCountOffset, v)
}

func (p *Pool) blockDataSize(block int) uint64 {
	return p.word(block + blockDataSizeOffset)
}

func (p *Pool) setBlockDataSize(block int, v uint64) {
	p.setWord(block+blockDataSizeOffset, v)
}

// blockTailOffset locates the tail marker of a block (or run) whose
// payload spans payloadSize bytes.
func blockTailOffset(block, payloadSize int) int {
	return block + blockPayloadOffset + payloadSize
}

// hasBlockHead reports whether a block head marker sits at off.
func (p *Pool) hasBlockHead(off int) bool {
	if off < firstBlockOffset || off+alignAmount > len(p.mem) {
		return false
	}
	return bytes.Equal(p.mem[off:off+alignAmount], blockHeadMarker)
}

// hasBlockTail reports whether a block tail marker sits at off.
func (p *Pool) hasBlockTail(off int) bool {
	if off < firstBlockOffset || off+alignAmount > len(p.mem) {
		return false
	}
	return bytes.Equal(p.mem[off:off+alignAmount], blockTailMarker)
}

// writeFreeBlock restores a block base to its free state: head marker,
// unset counters and the tail marker for a single data-size span.
func (p *Pool) writeFreeBlock(block, dataSize int) {
	copy(p.mem[block:block+alignAmount], blockHeadMarker)
	p.setBlockRunCount(block, valueNotSet)
	p.setBlockDataSize(block, valueNotSet)
	tail := blockTailOffset(block, dataSize)
	copy(p.mem[tail:tail+alignAmount], blockTailMarker)
}
