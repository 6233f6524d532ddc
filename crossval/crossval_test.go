package crossval

import (
	"slices"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djgagne/california-rainfall-test/datasets"
)

func span(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}

func TestGetCV_ThreeMembers(t *testing.T) {
	y := make([]float32, 3465)
	folds := slices.Collect(GetCV(nil, y))
	require.Len(t, folds, 3)

	assert.Equal(t, span(0, 1155), folds[0].Test)
	assert.Equal(t, span(1155, 3465), folds[0].Train)

	assert.Equal(t, span(1155, 2310), folds[1].Test)
	assert.Equal(t, append(span(0, 1155), span(2310, 3465)...), folds[1].Train)

	assert.Equal(t, span(2310, 3465), folds[2].Test)
	assert.Equal(t, span(0, 2310), folds[2].Train)

	for g, f := range folds {
		assert.Equal(t, g, f.Group)
	}
}

func TestGetCV_IgnoresFeatures(t *testing.T) {
	y := make([]float32, 2310)
	grid := &datasets.GridStack{Samples: 7}
	assert.Equal(t, slices.Collect(GetCV(nil, y)), slices.Collect(GetCV(grid, y)))
}

func TestGetCV_Degenerate(t *testing.T) {
	assert.Empty(t, slices.Collect(GetCV(nil, nil)))
	assert.Empty(t, slices.Collect(GetCV(nil, make([]float32, 1154))))

	folds := slices.Collect(GetCV(nil, make([]float32, 1155)))
	require.Len(t, folds, 1)
	assert.Len(t, folds[0].Test, 1155)
	assert.Empty(t, folds[0].Train)
}

// TestFolds_Properties checks fold count, disjoint test sets and full coverage
// for divisible and non-divisible sample counts.
func TestFolds_Properties(t *testing.T) {
	for _, tc := range []struct {
		n, block, folds int
	}{
		{n: 0, block: 5, folds: 0},
		{n: 4, block: 5, folds: 0},
		{n: 5, block: 5, folds: 1},
		{n: 20, block: 5, folds: 4},
		{n: 23, block: 5, folds: 4},
		{n: 10, block: 1, folds: 10},
	} {
		seq, count, err := Blocked{BlockSize: tc.block}.Folds(tc.n)
		require.NoError(t, err)
		assert.Equal(t, tc.folds, count, "n=%d block=%d", tc.n, tc.block)

		seen := make(map[int]int)
		got := 0
		for f := range seq {
			got++
			assert.Equal(t, tc.n, len(f.Train)+len(f.Test), "n=%d fold %d", tc.n, f.Group)
			for _, i := range f.Test {
				seen[i]++
			}
			assert.Empty(t, intersect(f.Train, f.Test))
		}
		assert.Equal(t, tc.folds, got)
		if tc.folds > 0 {
			assert.Len(t, seen, tc.n, "every sample is tested")
		}
		for i, c := range seen {
			assert.Equal(t, 1, c, "sample %d tested %d times", i, c)
		}
	}
}

func TestBlockGroups_Remainder(t *testing.T) {
	groups, err := BlockGroups(7, 3, MergeRemainder)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1, 1}, groups)

	groups, err = BlockGroups(2, 3, MergeRemainder)
	require.NoError(t, err)
	assert.Equal(t, []int{Unassigned, Unassigned}, groups)

	_, err = BlockGroups(7, 3, RejectRemainder)
	assert.True(t, errors.Is(err, ErrRemainder), "got %v", err)

	groups, err = BlockGroups(6, 3, RejectRemainder)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, groups)

	_, err = BlockGroups(6, 0, MergeRemainder)
	assert.True(t, errors.Is(err, ErrBlockSize), "got %v", err)
}

func TestLeaveOneGroupOut_Unordered(t *testing.T) {
	var logo LeaveOneGroupOut
	groups := []int{2, 0, Unassigned, 2, 1}
	assert.Equal(t, 3, logo.NSplits(groups))

	folds := slices.Collect(logo.Split(groups))
	require.Len(t, folds, 3)
	assert.Equal(t, Fold{Group: 0, Train: []int{0, 3, 4}, Test: []int{1}}, folds[0])
	assert.Equal(t, Fold{Group: 1, Train: []int{0, 1, 3}, Test: []int{4}}, folds[1])
	assert.Equal(t, Fold{Group: 2, Train: []int{1, 4}, Test: []int{0, 3}}, folds[2])
}

func TestSplit_StopsEarly(t *testing.T) {
	groups, err := BlockGroups(30, 10, MergeRemainder)
	require.NoError(t, err)
	n := 0
	for range (LeaveOneGroupOut{}).Split(groups) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestParseRemainderPolicy(t *testing.T) {
	p, err := ParseRemainderPolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, RejectRemainder, p)
	assert.Equal(t, "reject", p.String())

	_, err = ParseRemainderPolicy("drop")
	assert.Error(t, err)
}

func intersect(a, b []int) []int {
	in := make(map[int]bool, len(a))
	for _, v := range a {
		in[v] = true
	}
	var out []int
	for _, v := range b {
		if in[v] {
			out = append(out, v)
		}
	}
	return out
}
