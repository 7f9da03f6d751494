package emballoc

import (
	"sync"
	"testing"
)

func TestFree(t *testing.T) {
	t.Run("RestoresPristineState", func(t *testing.T) {
		p := Create(&Settings{Num32BytesBlocks: 2, Num64BytesBlocks: 4})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(20)
		if ptr == NilPointer {
			t.Fatal("Malloc failed")
		}
		buf := p.Bytes(ptr)
		for i := range buf {
			buf[i] = 0x55
		}

		p.Free(ptr)
		if p.LastErrorCode() != NoError {
			t.Fatalf("Free recorded %v", p.LastErrorCode())
		}
		checkAllFree(t, p)
	})

	t.Run("MultiBlockRun", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 4})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(150) // 2 blocks
		if ptr == NilPointer {
			t.Fatal("Malloc failed")
		}
		p.Free(ptr)
		if p.LastErrorCode() != NoError {
			t.Fatalf("Free recorded %v", p.LastErrorCode())
		}
		checkAllFree(t, p)
	})

	t.Run("NilPointer", func(t *testing.T) {
		p := Create(&Settings{Num32BytesBlocks: 1})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		p.Free(NilPointer)
		if p.LastErrorCode() != NoError {
			t.Errorf("Free(nil) should be a no-op, got %v", p.LastErrorCode())
		}
	})

	t.Run("InvalidPointer", func(t *testing.T) {
		p := Create(&Settings{Num32BytesBlocks: 2})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		p.Free(Pointer(alignAmount)) // inside the settings record
		if p.LastErrorCode() != PointerParamError {
			t.Errorf("last error = %v, want PointerParamError", p.LastErrorCode())
		}
	})

	t.Run("DoubleFree", func(t *testing.T) {
		p := Create(&Settings{Num32BytesBlocks: 1})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(16)
		if ptr == NilPointer {
			t.Fatal("Malloc failed")
		}
		p.Free(ptr)
		if p.LastErrorCode() != NoError {
			t.Fatalf("first Free recorded %v", p.LastErrorCode())
		}

		// The block is free again: its counters read as unset, which
		// the second Free reports and refuses.
		p.Free(ptr)
		if p.LastErrorCode() != PointerParamError {
			t.Errorf("last error = %v, want PointerParamError", p.LastErrorCode())
		}
		checkAllFree(t, p)
	})

	t.Run("CursorsRelax", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 3})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		a := p.Malloc(60)
		b := p.Malloc(60)
		c := p.Malloc(60)
		if a == NilPointer || b == NilPointer || c == NilPointer {
			t.Fatal("Malloc failed")
		}

		cls := p.class(1)
		if cls.firstFree() != 0 || cls.lastFree() != 0 {
			t.Fatal("saturated class should null its cursors")
		}

		p.Free(b)
		blockB := int(b) - blockPayloadOffset
		if cls.firstFree() != blockB || cls.lastFree() != blockB {
			t.Errorf("cursors = %d/%d, want both %d", cls.firstFree(), cls.lastFree(), blockB)
		}

		p.Free(a)
		blockA := int(a) - blockPayloadOffset
		if cls.firstFree() != blockA {
			t.Errorf("first free = %d, want %d", cls.firstFree(), blockA)
		}
		if cls.lastFree() != blockB {
			t.Errorf("last free = %d, want %d", cls.lastFree(), blockB)
		}

		p.Free(c)
		checkAllFree(t, p)
	})
}

func TestMallocFreeCycles(t *testing.T) {
	p := Create(&Settings{
		Num32BytesBlocks:  4,
		Num64BytesBlocks:  4,
		Num256BytesBlocks: 2,
		Num1KBytesBlocks:  2,
	})
	if p == nil {
		t.Fatal("Create failed")
	}
	defer p.Destroy()

	sizes := []int{1, 31, 32, 33, 64, 100, 256, 300, 1024, 500}
	var live []Pointer
	for _, size := range sizes {
		if ptr := p.Malloc(size); ptr != NilPointer {
			live = append(live, ptr)
		}
	}
	if len(live) == 0 {
		t.Fatal("no allocation succeeded")
	}

	// Free in a different order than allocated.
	for i := len(live) - 1; i >= 0; i -= 2 {
		p.Free(live[i])
	}
	for i := len(live) % 2; i < len(live); i += 2 { // the indices the first pass skipped
		p.Free(live[i])
	}

	checkAllFree(t, p)
}

func TestThreadsafePool(t *testing.T) {
	p := Create(&Settings{
		Num64BytesBlocks:  64,
		Num256BytesBlocks: 32,
		Threadsafe:        true,
	})
	if p == nil {
		t.Fatal("Create failed")
	}
	defer p.Destroy()

	if !p.mutexInitialized() {
		t.Fatal("threadsafe pool should initialize its mutex")
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				size := 1 + (g*37+i)%250
				ptr := p.Malloc(size)
				if ptr == NilPointer {
					continue
				}
				buf := p.Bytes(ptr)
				for j := range buf {
					buf[j] = byte(g)
				}
				p.Free(ptr)
			}
		}(g)
	}
	wg.Wait()

	checkAllFree(t, p)
}
