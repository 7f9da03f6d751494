package emballoc

// classForPointer maps a live payload offset back to its class. On the
// way it re-validates the run metadata and heals what it can: a broken
// head marker is reported and rewritten, a free or impossible counter
// pair is reported and forced back to the free state (the run is then
// unusable and the lookup fails), a broken run tail is reported and
// rewritten. The second return value is false when ptr does not address
// a live run.
func (p *Pool) classForPointer(ptr int) (classRef, bool) {
	block := ptr - blockPayloadOffset

	if !p.hasBlockHead(block) {
		p.setError(Overflow, msgOverflow, block)
		copy(p.mem[block:block+alignAmount], blockHeadMarker)
	}

	if p.blockRunCount(block) == valueNotSet {
		p.setBlockDataSize(block, valueNotSet)
		p.setError(Overflow, msgOverflow, block+blockRunCountOffset)
		return classRef{}, false
	}
	if p.blockDataSize(block) == valueNotSet {
		p.setBlockRunCount(block, valueNotSet)
		p.setError(Overflow, msgOverflow, block+blockDataSizeOffset)
		return classRef{}, false
	}

	for i := 0; i < numClasses; i++ {
		c := p.class(i)
		if !c.contains(block) {
			continue
		}

		count := int(p.blockRunCount(block))
		maxRun := (c.lastAddress()-block)/c.stride() + 1
		if count < 1 || count > maxRun {
			// The counter cannot describe a live run in this class.
			// Force the pair free so the damage stops here.
			p.setError(Overflow, msgOverflow, block+blockRunCountOffset)
			p.setBlockRunCount(block, valueNotSet)
			p.setBlockDataSize(block, valueNotSet)
			return classRef{}, false
		}

		tail := blockTailOffset(block, runPayloadSize(c.dataSize(), count))
		if !p.hasBlockTail(tail) {
			p.setError(Overflow, msgOverflow, tail)
			copy(p.mem[tail:tail+alignAmount], blockTailMarker)
		}

		return c, true
	}

	return classRef{}, false
}

// freeLocked releases the run addressed by ptr. The caller holds the
// pool lock and has already matched the head marker.
func (p *Pool) freeLocked(ptr int) {
	c, ok := p.classForPointer(ptr)
	if !ok {
		p.setError(PointerParamError, msgPointerParam, locNone)
		return
	}
	p.freeRun(c, ptr)
}

// freeRun returns every block of the run addressed by ptr to the free
// state: the unused tail is verified under full overflow checks, the
// whole run span is poisoned, each block gets its markers and unset
// counters back, and the class bookkeeping is relaxed to cover the
// freed base.
func (p *Pool) freeRun(c classRef, ptr int) {
	block := ptr - blockPayloadOffset
	count := int(p.blockRunCount(block))
	dataSize := int(p.blockDataSize(block))
	runSize := runPayloadSize(c.dataSize(), count)
	if dataSize > runSize {
		p.setError(Overflow, msgOverflow, block+blockDataSizeOffset)
		dataSize = runSize
	}

	if p.fullOverflowChecks() &&
		!bufferUniform(p.mem[ptr+dataSize:ptr+runSize], poisonByte) {
		p.setError(Overflow, msgOverflow, ptr+dataSize)
	}

	p.fill(ptr, runSize, poisonByte)

	for i := 0; i < count; i++ {
		p.writeFreeBlock(block+i*c.stride(), c.dataSize())
	}

	c.setOccupiedBlocks(c.occupiedBlocks() - count)
	c.relaxCursors(block)
}
