// Package emballoc implements a fixed-capacity memory pool allocator
// with segregated block-size classes, integrity poisoning and
// buffer-overflow detection.
//
// A pool is one contiguous byte region obtained from the host once at
// creation. Eight size classes (32 bytes through 4 KiB) each own a
// preconfigured number of blocks; an allocation takes one block, or a
// run of adjacent blocks of one class when no best-fit single block is
// free (a run wins over a larger single block when it leaves more free
// bytes in its class). Every
// boundary carries a marker and every unused byte carries a poison
// fill, so corruption is detected at the next touch and repaired as
// well as reported. Allocation fails rather than oversubscribe: there
// is no block splitting, no defragmentation and no cross-class rescue.
package emballoc

import (
	"bytes"
	"sync"

	"github.com/oandronachi/emb-alloc/internal/hostmem"
)

// Pointer addresses a live payload inside a pool, as an offset from the
// pool base. The zero value is the null pointer: offset zero holds the
// pool head marker and can never be a payload.
type Pointer int

// NilPointer is the null Pointer.
const NilPointer Pointer = 0

// Pool is a handle over one allocator region. All bookkeeping lives in
// the region itself; the handle adds only the process-local pieces a
// byte region cannot carry: the mutex and the error callback.
type Pool struct {
	mem           []byte
	region        hostmem.Region
	mu            sync.Mutex
	errorCallback ErrorCallback
}

// Create builds a pool from settings and returns its handle, or nil
// when the backing region could not be obtained (the callback, if any,
// receives NoMemory). The settings are sanitized first: the total size
// is recomputed from the per-class block counts, and a mismatch with
// the declared value is recorded as InconsistentSettings on the new
// pool — the pool is still usable.
func Create(settings *Settings) *Pool {
	if settings == nil {
		return nil
	}

	sanitized := *settings
	consistent := sanitized.sanitize()
	size := sanitized.memoryRequirements()

	region, err := hostmem.Alloc(size)
	if err != nil {
		if sanitized.ErrorCallback != nil {
			sanitized.ErrorCallback(NoMemory, msgCannotCreate)
		}
		return nil
	}

	p := &Pool{
		mem:           region.Bytes(),
		region:        region,
		errorCallback: sanitized.ErrorCallback,
	}
	p.initialize(&sanitized, size)

	if !consistent {
		p.setError(InconsistentSettings, msgInconsistentSettings, locNone)
	}

	if sanitized.VerboseTrace {
		p.trace("\nMempool created")
		p.traceDump(locNone)
	}

	return p
}

// initialize lays the freshly obtained region out: poison fill, both
// pool markers, the settings record, the class table, the aux record
// and the free-state metadata of every block.
func (p *Pool) initialize(s *Settings, size int) {
	p.fill(0, size, poisonByte)
	copy(p.mem[:alignAmount], poolHeadMarker)
	copy(p.mem[size-alignAmount:size], poolTailMarker)

	p.writeSettings(s)
	p.initClassTable(s)
	p.initAux(s)
	p.initDataBlocks()
}

// initAux prepares the aux record. The mutex slot is reserved space;
// the init flag is what the lock path consults.
func (p *Pool) initAux(s *Settings) {
	p.fill(auxOffset+auxMutexSlotOffset, alignAmount, 0)
	p.setWord(auxOffset+auxMutexInitOffset, boolWord(s.Threadsafe))
	p.clearError()
}

// valid reports whether the handle addresses a live pool, by matching
// the head marker the way every public entry point does.
func (p *Pool) valid() bool {
	return p != nil && len(p.mem) >= controlSize &&
		bytes.Equal(p.mem[:alignAmount], poolHeadMarker)
}

func (p *Pool) mutexInitialized() bool {
	return p.word(auxOffset+auxMutexInitOffset) != 0
}

// lock acquires the pool mutex for a mutating call. When the pool was
// created threadsafe but the mutex is not usable, the operation must
// not proceed unguarded: ThreadSyncError is recorded and lock reports
// failure so the caller aborts.
func (p *Pool) lock() bool {
	if p.mutexInitialized() {
		p.mu.Lock()
		return true
	}
	if p.threadsafe() {
		p.setError(ThreadSyncError, msgMutexLock, locNone)
		return false
	}
	return true
}

func (p *Pool) unlock() {
	if p.mutexInitialized() {
		p.mu.Unlock()
	}
}

// Destroy zero-fills the pool region and releases it to the host.
// Returns whether the handle was a valid pool. A release failure is
// reported through the callback saved on the handle; the pool metadata
// is already gone at that point.
func (p *Pool) Destroy() bool {
	if !p.valid() {
		return false
	}

	callback := p.errorCallback
	locked := p.mutexInitialized()
	if locked {
		p.mu.Lock()
	}

	p.fill(0, p.poolSize(), 0)
	err := p.region.Release()
	p.mem = nil

	if locked {
		p.mu.Unlock()
	}

	if err != nil && callback != nil {
		callback(NoMemory, msgReleaseRegion)
	}

	return true
}

// Malloc allocates size bytes of uninitialized storage (zeroed when the
// pool was created with InitAllocatedMemory) and returns the payload
// pointer, or NilPointer when no class can satisfy the request.
// Allocation never crosses classes: a request that fits no single block
// and no contiguous run of one class fails even if the pool as a whole
// still holds enough free bytes.
func (p *Pool) Malloc(size int) Pointer {
	if !p.valid() {
		return NilPointer
	}
	p.trace("\nTrying to allocate %d bytes", size)

	ret := NilPointer
	if size > 0 {
		if !p.lock() {
			return NilPointer
		}
		// Cleared under the lock: concurrent mutators share the
		// last-error record.
		p.clearError()
		ret = p.mallocLocked(size)
		p.unlock()
	} else {
		p.clearError()
	}

	if ret != NilPointer {
		p.trace("Allocated %d bytes at the %d mempool offset", size, int(ret))
		p.traceDump(int(ret))
	} else {
		p.trace("\nFailed to allocate %d bytes", size)
	}

	return ret
}

// Free releases storage previously returned by Malloc or Realloc.
// Freeing NilPointer does nothing. A pointer that does not address a
// live payload records PointerParamError.
func (p *Pool) Free(ptr Pointer) {
	if !p.valid() {
		return
	}
	p.trace("\nTrying to free memory from the %d mempool offset", int(ptr))

	if ptr == NilPointer {
		p.clearError()
		return
	}
	if !p.lock() {
		return
	}
	p.clearError()

	if p.hasBlockHead(int(ptr) - blockPayloadOffset) {
		p.freeLocked(int(ptr))
	} else {
		p.setError(PointerParamError, msgPointerParam, locNone)
	}

	p.unlock()

	if p.lastErrorCode() == NoError {
		p.trace("Freed bytes at the %d mempool offset", int(ptr))
		p.traceDump(int(ptr))
	}
}

// Realloc resizes the allocation at ptr to size bytes. A NilPointer
// behaves like Malloc(size); a zero size frees ptr and returns
// NilPointer. Growth extends the run in place when the blocks directly
// after it are free; otherwise the data relocates to a fresh
// allocation. The original pointer is freed even when the relocation's
// destination allocation failed: a NilPointer return from a growing
// Realloc means the old storage is gone too.
func (p *Pool) Realloc(ptr Pointer, size int) Pointer {
	if !p.valid() {
		return NilPointer
	}
	p.trace("\nTrying to reallocate %d bytes from the %d mempool offset", size, int(ptr))

	if ptr == NilPointer && size <= 0 {
		p.clearError()
		return NilPointer
	}
	if !p.lock() {
		return NilPointer
	}
	p.clearError()

	ret := NilPointer
	switch {
	case ptr == NilPointer:
		ret = p.mallocLocked(size)
	case !p.hasBlockHead(int(ptr) - blockPayloadOffset):
		p.setError(PointerParamError, msgPointerParam, locNone)
	case size <= 0:
		p.freeLocked(int(ptr))
	default:
		ret = p.reallocLocked(int(ptr), size)
	}

	p.unlock()

	if ret != NilPointer {
		p.trace("Reallocated %d bytes from the %d to the %d mempool offset",
			size, int(ptr), int(ret))
		p.traceDump(int(ret))
	}

	return ret
}

// GetSettings copies the pool's stored settings into out. The stored
// record is immutable after creation, so reading it takes no lock. A
// nil out records OutputParamError under the lock and returns false.
func (p *Pool) GetSettings(out *Settings) bool {
	if !p.valid() {
		return false
	}

	if out == nil {
		if p.lock() {
			p.setError(OutputParamError, msgOutputParam, locNone)
			p.unlock()
		}
		return false
	}

	p.readSettings(out)
	out.ErrorCallback = p.errorCallback
	return true
}

// LastErrorCode returns the code recorded by the most recent public
// operation, without locking. An invalid handle yields InvalidMempool.
func (p *Pool) LastErrorCode() ErrorCode {
	if !p.valid() {
		return InvalidMempool
	}
	return p.lastErrorCode()
}

// LastErrorMessage returns the message recorded by the most recent
// public operation, without locking. Empty when the operation
// succeeded.
func (p *Pool) LastErrorMessage() string {
	if !p.valid() {
		return msgInvalidMempool
	}
	return p.lastErrorMessage()
}

// Bytes returns the payload addressed by ptr as a slice sized to the
// allocation's current data size, or nil when ptr does not address a
// live payload. Writes through the slice go straight into the pool.
func (p *Pool) Bytes(ptr Pointer) []byte {
	if !p.valid() {
		return nil
	}
	block := int(ptr) - blockPayloadOffset
	if !p.hasBlockHead(block) {
		return nil
	}
	size := p.blockDataSize(block)
	if size == valueNotSet || p.blockRunCount(block) == valueNotSet {
		return nil
	}
	off := int(ptr)
	return p.mem[off : off+int(size) : off+int(size)]
}
