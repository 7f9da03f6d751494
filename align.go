package emballoc

const (
	// wordSize is sizeof(machine word) on the 64-bit targets the pool
	// format is defined for.
	wordSize = 8

	// alignAmount is the fixed pool alignment: 2 * sizeof(machine word),
	// the worst-case GNU libc allocation alignment. Every offset inside
	// the pool is a multiple of it.
	alignAmount = 2 * wordSize

	// poisonByte fills free payloads, unused allocation tails and the
	// metadata of inner run blocks. A single stray write flips at least
	// one poisoned byte, which is how overflows are detected.
	poisonByte = 0xAC

	// valueNotSet marks the run-length and data-size counters of a free
	// block.
	valueNotSet = ^uint64(0)

	// numClasses is the number of block size classes. Must stay in sync
	// with the per-class count fields of Settings.
	numClasses = 8

	errorMessageSize = 512
	dumpFileNameSize = 128
)

// classDataSizes lists the usable bytes of a block in each class,
// ascending. Class regions are laid out in this order.
var classDataSizes = [numClasses]int{32, 64, 128, 256, 512, 1024, 2048, 4096}

// alignUp rounds size up to the next multiple of alignAmount.
func alignUp(size int) int {
	return (size + alignAmount - 1) &^ (alignAmount - 1)
}
