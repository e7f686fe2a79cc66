// Package cache models the private L1 of each node using Akita cache
// components. The L1 tracks tags only; line data never moves through the
// simulator. Evictions are reported so that the owner can drop its interest
// in the line at the line's home directory.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitLatency in cycles
	HitLatency uint64
}

// DefaultL1Config returns the default private L1: 16KB, 4-way, 128B lines.
func DefaultL1Config() Config {
	return Config{
		Size:          16 * 1024,
		Associativity: 4,
		BlockSize:     128,
		HitLatency:    1,
	}
}

// NumSets returns the number of sets the configuration describes.
func (c Config) NumSets() int {
	return c.Size / (c.Associativity * c.BlockSize)
}

// AccessResult contains the result of a lookup.
type AccessResult struct {
	// Hit indicates whether the line is present.
	Hit bool
	// Latency is the number of cycles the lookup takes.
	Latency uint64
}

// FillResult contains the result of installing a line.
type FillResult struct {
	// AlreadyPresent is true when the line was resident before the fill.
	AlreadyPresent bool
	// Evicted is true if a valid line had to make room.
	Evicted bool
	// EvictedAddr is the line address of the evicted line.
	EvictedAddr uint64
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Lookups   uint64
	Hits      uint64
	Misses    uint64
	Fills     uint64
	Evictions uint64
}

// Cache is a private, tag-only L1.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	stats Statistics
}

// New creates a new cache with the given configuration.
func New(config Config) *Cache {
	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			config.NumSets(),
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
}

// Lookup checks whether the line holding addr is resident and refreshes its
// LRU position on a hit.
func (c *Cache) Lookup(addr uint64) AccessResult {
	c.stats.Lookups++

	block := c.directory.Lookup(0, c.blockAddr(addr)) // PID=0 for now
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block) // Update LRU

		return AccessResult{
			Hit:     true,
			Latency: c.config.HitLatency,
		}
	}

	c.stats.Misses++

	return AccessResult{
		Hit:     false,
		Latency: c.config.HitLatency,
	}
}

// Contains reports whether the line holding addr is resident without
// touching LRU state or statistics.
func (c *Cache) Contains(addr uint64) bool {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	return block != nil && block.IsValid
}

// Fill installs the line holding addr, evicting the LRU line of its set if
// the set is full.
func (c *Cache) Fill(addr uint64) FillResult {
	blockAddr := c.blockAddr(addr)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.directory.Visit(block)
		return FillResult{AlreadyPresent: true}
	}

	result := FillResult{}
	c.stats.Fills++

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		// This shouldn't happen with proper directory setup
		return result
	}

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag // Tag stores block-aligned address
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim) // Update LRU

	return result
}

// Invalidate marks a cache line as invalid.
func (c *Cache) Invalidate(addr uint64) bool {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
		return true
	}

	return false
}

// ResidentLines returns the line addresses currently held.
func (c *Cache) ResidentLines() []uint64 {
	var lines []uint64
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				lines = append(lines, block.Tag)
			}
		}
	}

	return lines
}

// Reset invalidates all cache lines.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
