package emballoc

import (
	"strings"
	"testing"
)

func TestOverflowDetection(t *testing.T) {
	t.Run("TailMarkerDamage", func(t *testing.T) {
		// Writing one byte past a full 32-byte payload lands on the
		// block tail marker; Free must report it and heal the marker.
		p := Create(&Settings{Num32BytesBlocks: 1, FullOverflowChecks: true})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(32)
		if ptr == NilPointer {
			t.Fatal("Malloc failed")
		}
		p.mem[int(ptr)+32] ^= 0xFF

		p.Free(ptr)
		if p.LastErrorCode() != Overflow {
			t.Fatalf("last error = %v, want Overflow", p.LastErrorCode())
		}
		if !strings.Contains(p.LastErrorMessage(), "mempool offset") {
			t.Errorf("message lacks the location suffix: %q", p.LastErrorMessage())
		}
		checkAllFree(t, p)
	})

	t.Run("UnusedTailDamage", func(t *testing.T) {
		// A write past data_size but inside the block only touches
		// poison; only full overflow checks can see it.
		p := Create(&Settings{Num64BytesBlocks: 1, FullOverflowChecks: true})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(32)
		if ptr == NilPointer {
			t.Fatal("Malloc failed")
		}
		p.mem[int(ptr)+33] = 0x00

		p.Free(ptr)
		if p.LastErrorCode() != Overflow {
			t.Fatalf("last error = %v, want Overflow", p.LastErrorCode())
		}
		checkAllFree(t, p)
	})

	t.Run("UnusedTailIgnoredWithoutFullChecks", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 1})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(32)
		p.mem[int(ptr)+33] = 0x00

		p.Free(ptr)
		if p.LastErrorCode() != NoError {
			t.Errorf("last error = %v, want NoError", p.LastErrorCode())
		}
	})

	t.Run("FreeBlockPayloadDamage", func(t *testing.T) {
		// Corruption of a free block's poison is caught when the block
		// is next allocated, and the poison is restored first.
		p := Create(&Settings{Num32BytesBlocks: 1, FullOverflowChecks: true})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		c := p.class(0)
		payload := c.startAddress() + blockPayloadOffset
		p.mem[payload+5] = 0x00

		var codes []ErrorCode
		p.errorCallback = func(code ErrorCode, _ string) { codes = append(codes, code) }

		ptr := p.Malloc(16)
		if ptr == NilPointer {
			t.Fatal("Malloc failed")
		}
		if p.LastErrorCode() != Overflow {
			t.Errorf("last error = %v, want Overflow", p.LastErrorCode())
		}
		if len(codes) != 1 || codes[0] != Overflow {
			t.Errorf("callback codes = %v, want one Overflow", codes)
		}

		p.Free(ptr)
		checkAllFree(t, p)
	})

	t.Run("HeadMarkerDamageRefused", func(t *testing.T) {
		p := Create(&Settings{Num64BytesBlocks: 2})
		if p == nil {
			t.Fatal("Create failed")
		}
		defer p.Destroy()

		ptr := p.Malloc(40)
		block := int(ptr) - blockPayloadOffset

		// Damage the head marker: Free refuses the pointer outright,
		// because the marker is the only proof it was ever a block.
		p.mem[block] ^= 0xFF
		p.Free(ptr)
		if p.LastErrorCode() != PointerParamError {
			t.Fatalf("last error = %v, want PointerParamError", p.LastErrorCode())
		}

		p.mem[block] ^= 0xFF // restore; the block is still live
		p.Free(ptr)
		if p.LastErrorCode() != NoError {
			t.Fatalf("Free after repair recorded %v", p.LastErrorCode())
		}
		checkAllFree(t, p)
	})
}

func TestBufferUniform(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		ref  byte
		want bool
	}{
		{"Nil", nil, poisonByte, true},
		{"Empty", []byte{}, poisonByte, true},
		{"Single", []byte{poisonByte}, poisonByte, true},
		{"SingleWrong", []byte{0x00}, poisonByte, false},
		{"Uniform", []byte{0xAC, 0xAC, 0xAC}, poisonByte, true},
		{"FirstDiffers", []byte{0x01, 0xAC, 0xAC}, poisonByte, false},
		{"LastDiffers", []byte{0xAC, 0xAC, 0x01}, poisonByte, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := bufferUniform(tc.buf, tc.ref); got != tc.want {
				t.Errorf("bufferUniform(%v, %#x) = %v, want %v", tc.buf, tc.ref, got, tc.want)
			}
		})
	}
}
