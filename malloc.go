package emballoc

import "bytes"

// mallocLocked picks a size class and allocates size bytes. The caller
// holds the pool lock and guarantees size > 0.
//
// Selection order: the smallest class wins outright when it fits and
// has room; otherwise classes are scanned from the largest down. A
// class that fits in one block and is the best single-block fit (the
// next class down is too small) wins immediately. Otherwise the
// smallest fitting class is remembered, and the first class below the
// request size that can host a contiguous multi-block run stops the
// scan. When both a single-block and a multi-block candidate exist the
// tie-break maximizes the free bytes left in the chosen class.
func (p *Pool) mallocLocked(size int) Pointer {
	if c := p.class(0); c.canAllocInBlock(size) {
		return p.mallocOneBlock(c, size)
	}

	largeIdx := numClasses
	smallIdx := numClasses
	var runBlock, runCount int

	for i := numClasses - 1; i > 0; i-- {
		c := p.class(i)
		if c.occupiedBlocks() >= c.totalBlocks() {
			continue
		}
		if c.canAllocInBlock(size) {
			if p.class(i-1).dataSize() < size {
				// Best single-block fit: the smallest class that
				// holds the request in one block.
				return p.mallocOneBlock(c, size)
			}
			largeIdx = i
		} else if block, count, ok := c.canAllocMultiBlocks(size); ok {
			runBlock, runCount = block, count
			smallIdx = i
			break
		}
	}

	if smallIdx == numClasses {
		if c := p.class(0); c.occupiedBlocks() < c.totalBlocks() {
			if block, count, ok := c.canAllocMultiBlocks(size); ok {
				runBlock, runCount = block, count
				smallIdx = 0
			}
		}
	}

	switch {
	case largeIdx != numClasses && smallIdx != numClasses:
		// Both candidates can serve. Allocate in the class that keeps
		// the larger residual of free bytes afterwards.
		large := p.class(largeIdx)
		small := p.class(smallIdx)
		residualLarge := large.dataSize() *
			(large.totalBlocks() - large.occupiedBlocks() - 1)
		residualSmall := small.dataSize() *
			(small.totalBlocks() - small.occupiedBlocks() - runCount)
		if residualLarge > residualSmall {
			return p.mallocOneBlock(large, size)
		}
		return p.mallocMultiBlocks(small, size, runBlock, runCount)
	case largeIdx != numClasses:
		return p.mallocOneBlock(p.class(largeIdx), size)
	case smallIdx != numClasses:
		return p.mallocMultiBlocks(p.class(smallIdx), size, runBlock, runCount)
	}

	p.setError(NoMemory, msgNoMemory, locNone)
	return NilPointer
}

// mergeFreeBlocks turns count adjacent free blocks starting at block
// into one run's worth of raw space. Every block is verified first:
// markers, free counters and, under full overflow checks, the poison
// fill of the payload. Mismatches are reported as Overflow and
// repaired, so the pool keeps its invariants even after corruption.
//
// keepStart preserves the head marker and counters of the first block;
// keepEnd preserves the tail marker of the last. Everything else is
// poisoned, leaving the inner metadata indistinguishable from payload.
func (p *Pool) mergeFreeBlocks(c classRef, block, count int, keepStart, keepEnd bool) {
	dataSize := c.dataSize()
	for i := 0; i < count; i++ {
		cur := block + i*c.stride()
		payload := cur + blockPayloadOffset
		tail := blockTailOffset(cur, dataSize)

		if !bytes.Equal(p.mem[cur:cur+alignAmount], blockHeadMarker) {
			p.setError(Overflow, msgOverflow, cur)
		}
		if !bytes.Equal(p.mem[tail:tail+alignAmount], blockTailMarker) {
			p.setError(Overflow, msgOverflow, tail)
		}
		if p.blockRunCount(cur) != valueNotSet {
			p.setError(Overflow, msgOverflow, cur+blockRunCountOffset)
		}
		if p.blockDataSize(cur) != valueNotSet {
			p.setError(Overflow, msgOverflow, cur+blockDataSizeOffset)
		}
		if p.fullOverflowChecks() &&
			!bufferUniform(p.mem[payload:payload+dataSize], poisonByte) {
			p.setError(Overflow, msgOverflow, payload)
			p.fill(payload, dataSize, poisonByte)
		}

		if !keepStart || i != 0 {
			p.fill(cur, blockStartControlSize, poisonByte)
		} else {
			copy(p.mem[cur:cur+alignAmount], blockHeadMarker)
			p.setBlockRunCount(cur, valueNotSet)
			p.setBlockDataSize(cur, valueNotSet)
		}

		if !keepEnd || i != count-1 {
			p.fill(tail, alignAmount, poisonByte)
		} else {
			copy(p.mem[tail:tail+alignAmount], blockTailMarker)
		}
	}
}

// mallocOneBlock serves size bytes from the first free block of c.
func (p *Pool) mallocOneBlock(c classRef, size int) Pointer {
	if !c.checkCursors() {
		return NilPointer
	}

	block := c.firstFree()
	p.mergeFreeBlocks(c, block, 1, true, true)

	payload := block + blockPayloadOffset
	if p.initAllocatedMemory() {
		p.fill(payload, size, 0)
	}
	p.setBlockRunCount(block, 1)
	p.setBlockDataSize(block, uint64(size))
	c.setOccupiedBlocks(c.occupiedBlocks() + 1)

	if c.occupiedBlocks() < c.totalBlocks() {
		c.advanceFirstFree(block)
	} else {
		c.forceSaturated()
	}

	return Pointer(payload)
}

// mallocMultiBlocks serves size bytes from count adjacent blocks of c
// starting at block, as located by canAllocMultiBlocks.
func (p *Pool) mallocMultiBlocks(c classRef, size, block, count int) Pointer {
	if !c.checkCursors() {
		return NilPointer
	}
	if block == 0 {
		p.setError(InconsistentBlocks, msgInconsistentBlocks, c.base)
		c.forceSaturated()
		return NilPointer
	}

	p.mergeFreeBlocks(c, block, count, true, true)

	payload := block + blockPayloadOffset
	if p.initAllocatedMemory() {
		p.fill(payload, size, 0)
	}
	p.setBlockRunCount(block, uint64(count))
	p.setBlockDataSize(block, uint64(size))
	c.setOccupiedBlocks(c.occupiedBlocks() + count)

	if c.occupiedBlocks() < c.totalBlocks() {
		if c.firstFree() == block {
			c.advanceFirstFree(block + (count-1)*c.stride())
		}
	} else {
		c.forceSaturated()
	}

	return Pointer(payload)
}
