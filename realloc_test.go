package emballoc

import "testing"

func TestRealloc(t *testing.T) {
	t.Run("NilPointerActsAsMalloc", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 2})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Realloc(NilPointer, 40)
		if ptr == NilPointer {
			t.Fatal("Realloc(nil, n) should allocate")
		}
		if got := len(p.Bytes(ptr)); got != 40 {
			t.Errorf("payload length = %d, want 40", got)
		}
	})

	t.Run("ZeroSizeActsAsFree", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 2})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(40)
		if ptr == NilPointer {
			t.Fatal("Malloc failed")
		}
		if p.Realloc(ptr, 0) != NilPointer {
			t.Error("Realloc(p, 0) should return nil")
		}
		checkAllFree(t, p)
	})

	t.Run("SameSizeIsNoOp", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 2})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(40)
		if got := p.Realloc(ptr, 40); got != ptr {
			t.Errorf("Realloc to same size moved the pointer: %d -> %d", ptr, got)
		}
	})

	t.Run("Shrink", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 2})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(60)
		buf := p.Bytes(ptr)
		for i := range buf {
			buf[i] = 0x11
		}

		if got := p.Realloc(ptr, 20); got != ptr {
			t.Fatalf("shrinking Realloc moved the pointer: %d -> %d", ptr, got)
		}
		if got := len(p.Bytes(ptr)); got != 20 {
			t.Errorf("payload length = %d, want 20", got)
		}
		// The dropped suffix goes back to poison; the kept prefix stays.
		if !bufferUniform(p.mem[int(ptr)+20:int(ptr)+60], poisonByte) {
			t.Error("dropped suffix not poisoned")
		}
		if !bufferUniform(p.mem[int(ptr):int(ptr)+20], 0x11) {
			t.Error("kept prefix damaged")
		}
		// The run keeps its single block; tail blocks are never
		// reclaimed by shrinking.
		if got := p.blockRunCount(int(ptr) - blockPayloadOffset); got != 1 {
			t.Errorf("run count = %d, want 1", got)
		}
	})

	t.Run("GrowWithinRun", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 2, InitAllocatedMemory: true})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(40)
		if got := p.Realloc(ptr, 60); got != ptr {
			t.Fatalf("growth within the block moved the pointer: %d -> %d", ptr, got)
		}
		if got := p.blockDataSize(int(ptr) - blockPayloadOffset); got != 60 {
			t.Errorf("data size = %d, want 60", got)
		}
		if !bufferUniform(p.mem[int(ptr)+40:int(ptr)+60], 0) {
			t.Error("grown span should be zero-filled")
		}
	})

	t.Run("ExtendInPlace", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 4})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(60)
		buf := p.Bytes(ptr)
		for i := range buf {
			buf[i] = 0x22
		}

		got := p.Realloc(ptr, 100)
		if got != ptr {
			t.Fatalf("in-place extension moved the pointer: %d -> %d", ptr, got)
		}
		block := int(ptr) - blockPayloadOffset
		if rc := p.blockRunCount(block); rc != 2 {
			t.Errorf("run count = %d, want 2", rc)
		}
		if ds := p.blockDataSize(block); ds != 100 {
			t.Errorf("data size = %d, want 100", ds)
		}
		if !bufferUniform(p.mem[int(ptr):int(ptr)+60], 0x22) {
			t.Error("payload damaged by extension")
		}
		if got := p.class(1).occupiedBlocks(); got != 2 {
			t.Errorf("occupied = %d, want 2", got)
		}
		if !p.hasBlockTail(blockTailOffset(block, runPayloadSize(64, 2))) {
			t.Error("run tail marker missing after extension")
		}

		p.Free(ptr)
		checkAllFree(t, p)
	})

	t.Run("ExtensionBlockedRelocates", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 2, Num512BytesBlocks: 1})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		first := p.Malloc(60)
		second := p.Malloc(60) // occupies the neighbour block
		if first == NilPointer || second == NilPointer {
			t.Fatal("Malloc failed")
		}
		buf := p.Bytes(first)
		for i := range buf {
			buf[i] = 0x33
		}

		moved := p.Realloc(first, 500)
		if moved == NilPointer {
			t.Fatal("relocating Realloc failed")
		}
		if moved == first {
			t.Fatal("Realloc should have relocated")
		}
		if got := p.class(4).occupiedBlocks(); got != 1 {
			t.Errorf("class 512 occupied = %d, want 1", got)
		}
		// The first 60 bytes survive the move; the old block is free.
		if !bufferUniform(p.Bytes(moved)[:60], 0x33) {
			t.Error("copy did not preserve the payload")
		}
		if got := p.class(1).occupiedBlocks(); got != 1 {
			t.Errorf("class 64 occupied = %d, want 1 (only the neighbour)", got)
		}
		if p.Bytes(first) != nil {
			t.Error("original pointer should be dead after relocation")
		}
	})

	t.Run("FailedGrowthStillFreesOriginal", func(t *testing.T) {
		p := Create(&Settings{Num32BytesBlocks: 1})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(20)
		if ptr == NilPointer {
			t.Fatal("Malloc failed")
		}

		if got := p.Realloc(ptr, 200); got != NilPointer {
			t.Fatalf("impossible growth should fail, got %d", got)
		}
		if p.LastErrorCode() != NoMemory {
			t.Errorf("last error = %v, want NoMemory", p.LastErrorCode())
		}
		// The documented hazard: the original is gone too.
		checkAllFree(t, p)
	})

	t.Run("InvalidPointer", func(t *testing.T) {
		p := Create(&Settings{Num32BytesBlocks: 1})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		if p.Realloc(Pointer(alignAmount), 16) != NilPointer {
			t.Error("Realloc of a junk pointer should fail")
		}
		if p.LastErrorCode() != PointerParamError {
			t.Errorf("last error = %v, want PointerParamError", p.LastErrorCode())
		}
	})

	t.Run("ExtendRunFurther", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 5})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(150) // 2 blocks
		if ptr == NilPointer {
			t.Fatal("Malloc failed")
		}
		if got := p.Realloc(ptr, 280); got != ptr {
			t.Fatalf("extension moved the pointer: %d -> %d", ptr, got)
		}
		block := int(ptr) - blockPayloadOffset
		if rc := p.blockRunCount(block); rc != 3 {
			t.Errorf("run count = %d, want 3", rc)
		}

		p.Free(ptr)
		checkAllFree(t, p)
	})
}
