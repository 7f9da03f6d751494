package emballoc

// reallocLocked resizes the run addressed by ptr to size bytes. The
// caller holds the pool lock, has matched the head marker and
// guarantees size > 0.
func (p *Pool) reallocLocked(ptr, size int) Pointer {
	c, ok := p.classForPointer(ptr)
	if !ok {
		p.setError(PointerParamError, msgPointerParam, locNone)
		return NilPointer
	}
	return p.reallocInClass(c, ptr, size)
}

// reallocInClass implements the resize inside the run's own class:
// same size is a no-op, shrinking poisons the dropped suffix without
// returning tail blocks, growth inside the current run span only moves
// the data-size counter, and larger growth extends the run in place
// when the blocks immediately after it are free. Only when in-place
// extension is impossible does the data relocate: a fresh allocation,
// a copy of the current contents, then a free of the original run. The
// original run is released even when the fresh allocation failed.
func (p *Pool) reallocInClass(c classRef, ptr, size int) Pointer {
	block := ptr - blockPayloadOffset
	count := int(p.blockRunCount(block))
	dataSize := int(p.blockDataSize(block))
	runSize := runPayloadSize(c.dataSize(), count)

	if p.fullOverflowChecks() &&
		!bufferUniform(p.mem[ptr+dataSize:ptr+runSize], poisonByte) {
		p.setError(Overflow, msgOverflow, ptr+dataSize)
		p.fill(ptr+dataSize, runSize-dataSize, poisonByte)
	}

	switch {
	case size == dataSize:
		return Pointer(ptr)

	case size < dataSize:
		// The run keeps its length; the dropped suffix goes back to
		// poison so overflow detection keeps working behind it.
		p.fill(ptr+size, dataSize-size, poisonByte)
		p.setBlockDataSize(block, uint64(size))
		return Pointer(ptr)

	case size <= runSize:
		if p.initAllocatedMemory() {
			p.fill(ptr+dataSize, size-dataSize, 0)
		}
		p.setBlockDataSize(block, uint64(size))
		return Pointer(ptr)
	}

	extra := (size - runSize) / c.stride()
	if (size-runSize)%c.stride() != 0 {
		extra++
	}

	if extra <= c.totalBlocks()-c.occupiedBlocks() {
		// The free-block count suffices; the blocks directly after the
		// run must also be free for an in-place extension.
		contiguous := true
		for i := 0; i < extra; i++ {
			next := block + (count+i)*c.stride()
			if next > c.lastAddress() || p.blockRunCount(next) != valueNotSet {
				contiguous = false
				break
			}
		}

		if contiguous {
			oldTail := blockTailOffset(block, runSize)
			p.mergeFreeBlocks(c, block+count*c.stride(), extra, false, true)
			p.fill(oldTail, alignAmount, poisonByte)

			if p.initAllocatedMemory() {
				p.fill(ptr+dataSize, size-dataSize, 0)
			}
			p.setBlockRunCount(block, uint64(count+extra))
			p.setBlockDataSize(block, uint64(size))
			c.setOccupiedBlocks(c.occupiedBlocks() + extra)

			if c.occupiedBlocks() >= c.totalBlocks() {
				c.forceSaturated()
			} else if c.firstFree() != 0 && c.firstFree() >= block+count*c.stride() &&
				c.firstFree() < block+(count+extra)*c.stride() {
				c.advanceFirstFree(block + (count+extra-1)*c.stride())
			}

			return Pointer(ptr)
		}
	}

	newPtr := p.mallocLocked(size)
	if newPtr != NilPointer {
		copy(p.mem[int(newPtr):int(newPtr)+dataSize], p.mem[ptr:ptr+dataSize])
	}
	p.freeRun(c, ptr)

	return newPtr
}
