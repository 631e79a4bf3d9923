package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItemLabelRoundTrip(t *testing.T) {
	var il ItemLabel
	il.Item[0] = 0xAB
	il.Label[31] = 0xCD
	b, err := il.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, ItemLabelSize)

	got, err := UnmarshalItemLabel(b)
	require.NoError(t, err)
	require.Equal(t, il, got)
}

func TestUnmarshalItemLabelShort(t *testing.T) {
	_, err := UnmarshalItemLabel([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestChunksRoundTrip(t *testing.T) {
	var v [32]byte
	for i := range v {
		v[i] = byte(i * 7)
	}
	c := chunks(v, 16, 16)
	require.Len(t, c, 16)
	got := assembleChunks(c, 16)
	require.Equal(t, v, got)
}

func TestInnerBoxCanInsertRespectsCapacityAndCollision(t *testing.T) {
	b := NewInnerBox(1, 2, 16, 16, 65537)
	var a, c [32]byte
	a[0] = 1
	// c differs from a on every lane (a is zero on lanes 1..15).
	for i := range c {
		c[i] = 2
	}

	require.True(t, b.CanInsert(ItemLabel{Item: a}, 0))
	require.NoError(t, b.Insert(ItemLabel{Item: a, Label: a}, 0))
	require.Equal(t, 1, b.Len(0))

	// same item again collides on every lane.
	require.False(t, b.CanInsert(ItemLabel{Item: a}, 0))
	err := b.Insert(ItemLabel{Item: a, Label: a}, 0)
	require.Error(t, err)

	require.NoError(t, b.Insert(ItemLabel{Item: c, Label: c}, 0))
	require.Equal(t, 2, b.Len(0))

	// row is now at capacity.
	var d [32]byte
	d[0] = 3
	require.False(t, b.CanInsert(ItemLabel{Item: d}, 0))
}

func TestInnerBoxPreprocessInterpolatesEachLane(t *testing.T) {
	b := NewInnerBox(1, 3, 16, 16, 65537)
	items := []ItemLabel{}
	for i := byte(1); i <= 3; i++ {
		var item, label [32]byte
		// every byte set to i, so the three items differ on every lane.
		for k := range item {
			item[k] = i
		}
		label[0] = i * 10
		items = append(items, ItemLabel{Item: item, Label: label})
		require.NoError(t, b.Insert(items[len(items)-1], 0))
	}
	require.NoError(t, b.Preprocess())
	for lane := 0; lane < 16; lane++ {
		require.NotNil(t, b.Coeffs(0, lane))
	}
}

func TestInnerBoxPackedCoeffsLaysOutRowsAndLanes(t *testing.T) {
	const rowsPerSegment = 2
	b := NewInnerBox(rowsPerSegment, 2, 16, 16, 65537)

	var item0, label0 [32]byte
	item0[0] = 9
	label0[0] = 90
	require.NoError(t, b.Insert(ItemLabel{Item: item0, Label: label0}, 0))

	var item1, label1 [32]byte
	item1[0] = 5
	label1[0] = 50
	require.NoError(t, b.Insert(ItemLabel{Item: item1, Label: label1}, 1))

	require.NoError(t, b.Preprocess())

	packed := b.PackedCoeffs(1)
	require.Len(t, packed, 2)
	for _, d := range packed {
		require.Len(t, d, rowsPerSegment*16)
	}
}

func TestBigBoxGrowsInsteadOfFailingOnCollision(t *testing.T) {
	bb := NewBigBox(4, 2, 16, func() *InnerBox {
		return NewInnerBox(2, 1, 16, 16, 65537)
	})

	var a, c [32]byte
	a[0] = 1
	c[0] = 1 // same lane-0 chunk value as a: a genuine lane collision at the same row.

	require.NoError(t, bb.Insert(ItemLabel{Item: a, Label: a}, 0))
	require.Equal(t, 1, bb.BoxesInSegment(0))

	// Row 0 in segment 0 is now both at capacity (1 item) and would
	// collide on item c; the segment must grow a second InnerBox rather
	// than erroring.
	require.NoError(t, bb.Insert(ItemLabel{Item: c, Label: c}, 0))
	require.Equal(t, 2, bb.BoxesInSegment(0))
}
