package emballoc

// Field offsets inside a class table entry.
const (
	ceDataSize    = 0
	ceTotalBlocks = wordSize
	ceOccupied    = 2 * wordSize
	ceStart       = 3 * wordSize
	ceLast        = 4 * wordSize
	ceFirstFree   = 5 * wordSize
	ceLastFree    = 6 * wordSize
)

// classRef is a view over one class table entry. The bookkeeping lives
// in the pool region itself; the ref only carries the entry offset.
//
// The free cursors are loose bounds, not an exact free list: no free
// block sits below firstFree or above lastFree, but live blocks may sit
// between them. Both are zero exactly when the class is saturated.
type classRef struct {
	p    *Pool
	idx  int
	base int
}

func (p *Pool) class(idx int) classRef {
	return classRef{p: p, idx: idx, base: classTableOffset + idx*classEntrySize}
}

func (c classRef) dataSize() int       { return int(c.p.word(c.base + ceDataSize)) }
func (c classRef) totalBlocks() int    { return int(c.p.word(c.base + ceTotalBlocks)) }
func (c classRef) occupiedBlocks() int { return int(c.p.word(c.base + ceOccupied)) }
func (c classRef) startAddress() int   { return int(c.p.word(c.base + ceStart)) }
func (c classRef) lastAddress() int    { return int(c.p.word(c.base + ceLast)) }
func (c classRef) firstFree() int      { return int(c.p.word(c.base + ceFirstFree)) }
func (c classRef) lastFree() int       { return int(c.p.word(c.base + ceLastFree)) }

func (c classRef) setOccupiedBlocks(n int) { c.p.setWord(c.base+ceOccupied, uint64(n)) }
func (c classRef) setFirstFree(off int)    { c.p.setWord(c.base+ceFirstFree, uint64(off)) }
func (c classRef) setLastFree(off int)     { c.p.setWord(c.base+ceLastFree, uint64(off)) }

func (c classRef) stride() int { return blockStride(c.dataSize()) }

// canAllocInBlock reports whether a single block of this class can hold
// size bytes right now.
func (c classRef) canAllocInBlock(size int) bool {
	return c.dataSize() >= size && c.occupiedBlocks() < c.totalBlocks()
}

// contains reports whether a block base belongs to this class region.
func (c classRef) contains(block int) bool {
	return c.totalBlocks() > 0 && c.startAddress() <= block && block <= c.lastAddress()
}

// forceSaturated pins the entry to its full state after an
// inconsistency, so later calls fail cleanly instead of cascading.
func (c classRef) forceSaturated() {
	c.setOccupiedBlocks(c.totalBlocks())
	c.setFirstFree(0)
	c.setLastFree(0)
}

// initClassTable lays the class regions out in ascending data-size
// order and points the cursors of each populated class at its first and
// last block.
func (p *Pool) initClassTable(s *Settings) {
	current := firstBlockOffset
	for i := 0; i < numClasses; i++ {
		c := p.class(i)
		dataSize := classDataSizes[i]
		total := int(s.blockCount(i))

		p.setWord(c.base+ceDataSize, uint64(dataSize))
		p.setWord(c.base+ceTotalBlocks, uint64(total))
		c.setOccupiedBlocks(0)

		if total > 0 {
			last := current + (total-1)*blockStride(dataSize)
			p.setWord(c.base+ceStart, uint64(current))
			p.setWord(c.base+ceLast, uint64(last))
			c.setFirstFree(current)
			c.setLastFree(last)
		} else {
			p.setWord(c.base+ceStart, 0)
			p.setWord(c.base+ceLast, 0)
			c.setFirstFree(0)
			c.setLastFree(0)
		}

		current += total * blockStride(dataSize)
	}
}

// initDataBlocks writes the free-state metadata of every block. The
// payloads already hold the poison fill from initialization.
func (p *Pool) initDataBlocks() {
	for i := 0; i < numClasses; i++ {
		c := p.class(i)
		for j := 0; j < c.totalBlocks(); j++ {
			p.writeFreeBlock(c.startAddress()+j*c.stride(), c.dataSize())
		}
	}
}

// checkCursors validates the occupancy counter and both free cursors
// before they are used for an allocation. On a broken entry it records
// InconsistentBlocks; a null cursor additionally forces saturation.
func (c classRef) checkCursors() bool {
	if c.occupiedBlocks() >= c.totalBlocks() {
		c.p.setError(InconsistentBlocks, msgInconsistentBlocks, c.base)
		return false
	}
	if c.firstFree() == 0 || c.lastFree() == 0 {
		c.p.setError(InconsistentBlocks, msgInconsistentBlocks, c.base)
		c.forceSaturated()
		return false
	}
	return true
}

// runLength returns how many blocks of this class a size-byte
// allocation needs.
func (c classRef) runLength(size int) int {
	stride := c.stride()
	count := blockStride(size) / stride
	if blockStride(size)%stride != 0 {
		count++
	}
	return count
}

// canAllocMultiBlocks scans for a run of contiguous free blocks able to
// hold size bytes. Returns the run base and length on success. The scan
// walks the span between the free cursors once, resetting at every live
// block, and short-circuits when the remaining span is too small.
func (c classRef) canAllocMultiBlocks(size int) (block, count int, ok bool) {
	if !c.checkCursors() {
		return 0, 0, false
	}

	count = c.runLength(size)
	if c.occupiedBlocks()+count > c.totalBlocks() {
		return 0, count, false
	}

	stride := c.stride()
	run := 0
	cur := c.firstFree()
	for cur <= c.lastFree() {
		if c.p.blockRunCount(cur) == valueNotSet {
			if run == 0 {
				block = cur
			}
			run++
			if run >= count {
				return block, count, true
			}
		} else {
			run = 0
			block = 0
			if (c.lastFree()-cur)/stride < count {
				return 0, count, false
			}
		}
		cur += stride
	}

	return 0, count, false
}

// advanceFirstFree moves the first-free cursor past an allocation whose
// run ends at lastRunBlock. Both cursors are nulled if no free block
// remains behind, which only happens on a corrupted pool: the caller
// already ruled out saturation.
func (c classRef) advanceFirstFree(lastRunBlock int) {
	stride := c.stride()
	initial := c.firstFree()
	cur := lastRunBlock
	for cur < c.lastFree() {
		cur += stride
		if c.p.blockRunCount(cur) == valueNotSet {
			c.setFirstFree(cur)
			break
		}
	}

	// Safety net, unreachable on a healthy pool.
	if c.firstFree() == initial {
		c.setFirstFree(0)
		c.setLastFree(0)
	}
}

// relaxCursors widens the free bounds to cover a newly freed run base.
func (c classRef) relaxCursors(block int) {
	if c.firstFree() == 0 || c.firstFree() > block {
		c.setFirstFree(block)
	}
	if c.lastFree() == 0 || c.lastFree() < block {
		c.setLastFree(block)
	}
}
