package hashing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Function
		wantErr bool
	}{
		{name: "empty defaults to md5", input: "", want: MD5{}},
		{name: "md5", input: "md5", want: MD5{}},
		{name: "mixed case", input: " Murmur3 ", want: Murmur3{}},
		{name: "xxhash", input: "xxhash", want: XXHash{}},
		{name: "unknown", input: "crc32", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ByName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMD5_KnownValue(t *testing.T) {
	// md5("") = d41d8cd98f00b204e9800998ecf8427e
	assert.Equal(t, uint64(0xd41d8cd98f00b204), MD5{}.Hash(""))
}

func TestFunctions_Deterministic(t *testing.T) {
	for _, fn := range []Function{MD5{}, Murmur3{}, XXHash{}} {
		t.Run(fmt.Sprintf("%T", fn), func(t *testing.T) {
			for _, s := range []string{"", "some-string", "/abcd/path;x=1"} {
				assert.Equal(t, fn.Hash(s), fn.Hash(s), "hash of %q changed between calls", s)
			}
			assert.NotEqual(t, fn.Hash("hashId1--0"), fn.Hash("hashId1--1"))
		})
	}
}

func TestFunctions_Uniformity(t *testing.T) {
	const (
		samples = 20000
		buckets = 16
	)
	for _, fn := range []Function{MD5{}, Murmur3{}, XXHash{}} {
		t.Run(fmt.Sprintf("%T", fn), func(t *testing.T) {
			counts := make([]int, buckets)
			for i := 0; i < samples; i++ {
				counts[fn.Hash(fmt.Sprintf("/video/segment-%d.ts", i))>>60]++
			}
			expected := samples / buckets
			for b, c := range counts {
				assert.InDelta(t, expected, c, float64(expected)*0.2, "bucket %d skewed", b)
			}
		})
	}
}

func TestFunc(t *testing.T) {
	f := Func(func(s string) uint64 { return uint64(len(s)) })
	assert.Equal(t, uint64(3), f.Hash("abc"))
}
