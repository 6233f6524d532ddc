// Package crossval builds the leave-one-ensemble-member-out folds used to
// validate submissions.
//
// Samples are ordered member by member, so a member is a contiguous block of
// BlockSize samples. Each block becomes one group and every fold holds out
// exactly one group.
package crossval

import (
	"iter"
	"slices"

	"github.com/pkg/errors"

	"github.com/djgagne/california-rainfall-test/datasets"
)

// DefaultBlockSize is the number of samples per ensemble member in the
// California rainfall data.
const DefaultBlockSize = 1155

// Unassigned marks samples outside every group.
const Unassigned = -1

var (
	// ErrRemainder is returned by RejectRemainder when the sample count is
	// not a multiple of the block size.
	ErrRemainder = errors.New("sample count is not a multiple of the block size")

	// ErrBlockSize is returned for non-positive block sizes.
	ErrBlockSize = errors.New("block size must be positive")
)

// RemainderPolicy decides what happens to samples past the last full block.
type RemainderPolicy int

const (
	// MergeRemainder gives leftover samples the id of the last full block.
	// With no full block at all they stay Unassigned.
	MergeRemainder RemainderPolicy = iota

	// RejectRemainder fails unless the blocks cover every sample.
	RejectRemainder
)

func (p RemainderPolicy) String() string {
	switch p {
	case MergeRemainder:
		return "merge"
	case RejectRemainder:
		return "reject"
	}
	return "unknown"
}

// ParseRemainderPolicy parses "merge" or "reject".
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch s {
	case "merge", "":
		return MergeRemainder, nil
	case "reject":
		return RejectRemainder, nil
	}
	return 0, errors.Errorf("unknown remainder policy %q", s)
}

// BlockGroups assigns group floor(i/blockSize) to sample i, for the
// floor(n/blockSize) full blocks, and applies policy to the rest.
func BlockGroups(n, blockSize int, policy RemainderPolicy) ([]int, error) {
	if blockSize <= 0 {
		return nil, errors.Wrapf(ErrBlockSize, "got %d", blockSize)
	}
	if n < 0 {
		return nil, errors.Errorf("negative sample count %d", n)
	}
	rem := n % blockSize
	if rem != 0 && policy == RejectRemainder {
		return nil, errors.Wrapf(ErrRemainder, "%d samples, block size %d, %d left over", n, blockSize, rem)
	}

	nGroups := n / blockSize
	groups := make([]int, n)
	for i := range groups {
		g := i / blockSize
		switch {
		case nGroups == 0:
			g = Unassigned
		case g >= nGroups:
			g = nGroups - 1
		}
		groups[i] = g
	}
	return groups, nil
}

// Fold is one train/test split. Indices are sorted ascending.
type Fold struct {
	Group int
	Train []int
	Test  []int
}

// LeaveOneGroupOut holds out one group per fold.
type LeaveOneGroupOut struct{}

// NSplits returns the number of distinct assigned groups.
func (LeaveOneGroupOut) NSplits(groups []int) int {
	return len(distinctGroups(groups))
}

// Split yields one fold per distinct group in increasing group order. The
// test set is the group's samples and the train set every other assigned
// sample. The sequence is lazy and computes each fold when it is pulled.
func (LeaveOneGroupOut) Split(groups []int) iter.Seq[Fold] {
	return func(yield func(Fold) bool) {
		for _, g := range distinctGroups(groups) {
			f := Fold{Group: g}
			for i, gi := range groups {
				switch {
				case gi == g:
					f.Test = append(f.Test, i)
				case gi != Unassigned:
					f.Train = append(f.Train, i)
				}
			}
			if !yield(f) {
				return
			}
		}
	}
}

func distinctGroups(groups []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, g := range groups {
		if g == Unassigned || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

// Blocked is the contiguous-block leave-one-group-out configuration.
type Blocked struct {
	BlockSize int
	Remainder RemainderPolicy
}

// Default returns the California rainfall CV configuration.
func Default() Blocked {
	return Blocked{BlockSize: DefaultBlockSize, Remainder: MergeRemainder}
}

// Folds returns the folds for n samples and how many there are.
func (b Blocked) Folds(n int) (iter.Seq[Fold], int, error) {
	groups, err := BlockGroups(n, b.BlockSize, b.Remainder)
	if err != nil {
		return nil, 0, err
	}
	var logo LeaveOneGroupOut
	return logo.Split(groups), logo.NSplits(groups), nil
}

// GetCV returns the default folds for the features x and labels y. Folds
// depend only on the sample order, so x may be nil and is not read. Samples
// are the rows of y; fewer than DefaultBlockSize of them give no folds.
func GetCV(x *datasets.GridStack, y []float32) iter.Seq[Fold] {
	seq, _, err := Default().Folds(len(y))
	if err != nil {
		// unreachable: the default policy merges the remainder
		return func(func(Fold) bool) {}
	}
	return seq
}
