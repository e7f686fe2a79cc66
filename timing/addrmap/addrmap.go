// Package addrmap decomposes physical addresses into the tag, set index and
// home node used by the distributed miss-coalescing directory.
package addrmap

import (
	"fmt"
	"math/bits"
)

// Mapper derives directory coordinates from an address. The zero value is not
// usable; create one with NewMapper.
type Mapper struct {
	lineSizeLog2 uint
	setCountLog2 uint
	nodeCount    uint64
}

// NewMapper creates a Mapper. The line size and the set count must both be
// powers of two and there must be at least one node.
func NewMapper(lineSize, setCount, nodeCount int) (Mapper, error) {
	if !isPowerOfTwo(lineSize) {
		return Mapper{}, fmt.Errorf("line size %d is not a power of two", lineSize)
	}
	if !isPowerOfTwo(setCount) {
		return Mapper{}, fmt.Errorf("set count %d is not a power of two", setCount)
	}
	if nodeCount < 1 {
		return Mapper{}, fmt.Errorf("node count must be >= 1, got %d", nodeCount)
	}

	return Mapper{
		lineSizeLog2: uint(bits.TrailingZeros(uint(lineSize))),
		setCountLog2: uint(bits.TrailingZeros(uint(setCount))),
		nodeCount:    uint64(nodeCount),
	}, nil
}

// Tag returns the directory key of the line that holds addr.
func (m Mapper) Tag(addr uint64) uint64 {
	return addr >> (m.lineSizeLog2 + m.setCountLog2)
}

// SetIndex returns the set that addr maps to within its home shard.
func (m Mapper) SetIndex(addr uint64) int {
	return int((addr >> m.lineSizeLog2) & (m.SetCount() - 1))
}

// Home returns the node whose directory shard owns addr.
func (m Mapper) Home(addr uint64) int {
	return int(m.Tag(addr) % m.nodeCount)
}

// LineAddr returns addr aligned down to its line boundary.
func (m Mapper) LineAddr(addr uint64) uint64 {
	return addr &^ (m.LineSize() - 1)
}

// LineSize returns the line size in bytes.
func (m Mapper) LineSize() uint64 {
	return 1 << m.lineSizeLog2
}

// SetCount returns the number of sets per home shard.
func (m Mapper) SetCount() uint64 {
	return 1 << m.setCountLog2
}

// NodeCount returns the number of nodes (and therefore shards).
func (m Mapper) NodeCount() int {
	return int(m.nodeCount)
}

func isPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}
