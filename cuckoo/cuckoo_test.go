package cuckoo_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/labeled-psi/cuckoo"
)

func itemOf(n uint64) [32]byte {
	var b [32]byte
	binary.LittleEndian.PutUint64(b[:8], n)
	return b
}

func TestIndicesDeterministic(t *testing.T) {
	h := cuckoo.New(3, 1<<8)
	item := itemOf(42)
	a := h.Indices(item)
	b := h.Indices(item)
	require.Equal(t, a, b)
	require.Len(t, a, 3)
	for _, idx := range a {
		require.Less(t, idx, uint32(1<<8))
	}
}

func TestBuildPlacesAllEntriesOrStack(t *testing.T) {
	h := cuckoo.New(3, 1<<6)
	n := 100
	items := make([][32]byte, n)
	vals := make([]uint64, n)
	for i := 0; i < n; i++ {
		items[i] = itemOf(uint64(i))
		vals[i] = uint64(i)
	}
	tables, stack := h.Build(items, vals)

	found := map[uint64]bool{}
	for _, tbl := range tables {
		for _, e := range tbl {
			v := e.Value
			require.False(t, found[v], "entry placed twice")
			found[v] = true
		}
	}
	for _, e := range stack {
		require.False(t, found[e.Value])
		found[e.Value] = true
	}
	require.Len(t, found, n)
}

func TestBuildDeterministicAcrossRuns(t *testing.T) {
	h := cuckoo.New(3, 1<<6)
	items := make([][32]byte, 50)
	vals := make([]int, 50)
	for i := range items {
		items[i] = itemOf(uint64(i * 7))
		vals[i] = i
	}
	t1, s1 := h.Build(items, vals)
	t2, s2 := h.Build(items, vals)
	require.Equal(t, t1, t2)
	require.Equal(t, s1, s2)
}
