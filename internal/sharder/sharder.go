// Package sharder maps subjects to traffic buckets. The hash formula is a
// wire-compatible constant shared with every other client implementation:
// changing any part of it (digest, byte slice, endianness) silently
// desynchronizes bucketing across platforms.
package sharder

import (
	"crypto/md5"
	"encoding/binary"
)

// Sharder maps an arbitrary input string to a bucket in [0, totalShards).
type Sharder interface {
	Shard(input string, totalShards int) int
}

// MD5Sharder computes the MD5 digest of the UTF-8 bytes of the input,
// reads the first 4 digest bytes as an unsigned big-endian 32-bit integer
// and reduces it modulo totalShards.
type MD5Sharder struct{}

// NewMD5Sharder returns the production sharder.
func NewMD5Sharder() MD5Sharder {
	return MD5Sharder{}
}

// Shard implements Sharder. totalShards must be positive.
func (MD5Sharder) Shard(input string, totalShards int) int {
	sum := md5.Sum([]byte(input))
	intVal := binary.BigEndian.Uint32(sum[:4])
	return int(uint64(intVal) % uint64(totalShards))
}

// DeterministicSharder answers from a fixed lookup table. Test-only
// strategy: it makes traffic placement explicit instead of hash-derived.
type DeterministicSharder struct {
	Lookup map[string]int
}

// NewDeterministicSharder returns a sharder that answers from lookup and
// falls back to bucket 0 for unknown inputs.
func NewDeterministicSharder(lookup map[string]int) DeterministicSharder {
	return DeterministicSharder{Lookup: lookup}
}

// Shard implements Sharder.
func (d DeterministicSharder) Shard(input string, totalShards int) int {
	if bucket, ok := d.Lookup[input]; ok {
		return bucket % totalShards
	}
	return 0
}
