package hashing

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Function maps an arbitrary string onto [0, 2^64).
type Function interface {
	Hash(s string) uint64
}

// Func adapts a plain function to Function.
type Func func(s string) uint64

// Hash calls f(s).
func (f Func) Hash(s string) uint64 {
	return f(s)
}

// MD5 uses the first eight bytes of the MD5 digest, big-endian.
type MD5 struct{}

// Hash returns the MD5 based hash of s.
func (MD5) Hash(s string) uint64 {
	sum := md5.Sum([]byte(s))
	return binary.BigEndian.Uint64(sum[:8])
}

// Murmur3 uses the 64-bit MurmurHash3 (x64 128, low half).
type Murmur3 struct{}

// Hash returns the MurmurHash3 of s.
func (Murmur3) Hash(s string) uint64 {
	return murmur3.Sum64([]byte(s))
}

// XXHash uses xxHash64.
type XXHash struct{}

// Hash returns the xxHash64 of s.
func (XXHash) Hash(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Default is the function used when none is configured.
var Default Function = MD5{}

// ByName resolves a configured hash function name. An empty name selects
// Default.
func ByName(name string) (Function, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "md5":
		return MD5{}, nil
	case "murmur3":
		return Murmur3{}, nil
	case "xxhash":
		return XXHash{}, nil
	default:
		return nil, fmt.Errorf("unknown hash function %q (expected md5, murmur3 or xxhash)", name)
	}
}
