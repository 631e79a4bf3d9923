package psiclient

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/labeled-psi/params"
)

func TestBuildQueryStateOneLocationPerTable(t *testing.T) {
	p := params.Default()
	var item [32]byte
	item[0] = 0x42

	qs := BuildQueryState(p, [][32]byte{item})
	locs := qs.Locations()
	require.Len(t, locs, int(p.NumHashTables))

	seen := make(map[int]bool)
	for _, l := range locs {
		require.Equal(t, item, l.Item)
		require.False(t, seen[l.Table], "duplicate table in locations")
		seen[l.Table] = true
		require.GreaterOrEqual(t, l.Segment, 0)
		require.GreaterOrEqual(t, l.RowInSegment, 0)
	}
}

func TestChunkValueAndAssembleLabelRoundTrip(t *testing.T) {
	var item [32]byte
	for i := range item {
		item[i] = byte(i*3 + 1)
	}
	lanes := make([]uint64, params.Slots)
	for lane := 0; lane < params.Slots; lane++ {
		lanes[lane] = chunkValue(item, lane, params.ChunkBits)
	}
	got := assembleLabel(lanes, params.ChunkBits)
	require.Equal(t, item, got)
}
