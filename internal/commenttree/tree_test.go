package commenttree

import (
	"errors"
	"testing"

	"github.com/anonto42/quill/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v uint) *uint { return &v }

func comment(id uint, parent *uint) models.Comment {
	return models.Comment{ID: id, ParentID: parent, Content: "c"}
}

func ids(nodes []*Node) []uint {
	out := make([]uint, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestBuild_NestsRepliesInInputOrder(t *testing.T) {
	input := []models.Comment{
		comment(5, ptr(1)),
		comment(1, nil),
		comment(2, nil),
		comment(3, ptr(1)),
		comment(4, ptr(3)),
	}

	forest, err := Build(input, Options{})
	require.NoError(t, err)

	assert.Equal(t, []uint{1, 2}, ids(forest))
	assert.Equal(t, []uint{5, 3}, ids(forest[0].Replies))
	assert.Equal(t, []uint{4}, ids(forest[0].Replies[1].Replies))
	assert.Empty(t, forest[1].Replies)
	assert.NotNil(t, forest[1].Replies)
}

func TestBuild_PartitionsEveryComment(t *testing.T) {
	input := []models.Comment{
		comment(1, nil),
		comment(2, ptr(1)),
		comment(3, ptr(99)),
		comment(4, ptr(2)),
		comment(5, ptr(3)),
		comment(6, nil),
	}

	forest, err := Build(input, Options{})
	require.NoError(t, err)

	flat := Flatten(forest)
	assert.Len(t, flat, len(input))
	assert.Equal(t, len(input), Count(forest))

	seen := map[uint]int{}
	for _, n := range flat {
		seen[n.ID]++
	}
	for _, c := range input {
		assert.Equal(t, 1, seen[c.ID], "comment %d", c.ID)
	}
}

func TestBuild_OrphanPromotedToRoot(t *testing.T) {
	var reported []uint
	forest, err := Build([]models.Comment{
		comment(1, nil),
		comment(2, ptr(42)),
	}, Options{OnOrphan: func(c models.Comment) { reported = append(reported, c.ID) }})
	require.NoError(t, err)

	assert.Equal(t, []uint{1, 2}, ids(forest))
	assert.Equal(t, []uint{2}, reported)
}

func TestBuild_DropOrphansRemovesSubtree(t *testing.T) {
	forest, err := Build([]models.Comment{
		comment(1, nil),
		comment(2, ptr(42)),
		comment(3, ptr(2)),
	}, Options{Orphans: DropOrphans})
	require.NoError(t, err)

	assert.Equal(t, []uint{1}, ids(forest))
	assert.Equal(t, 1, Count(forest))
}

func TestBuild_RejectOrphans(t *testing.T) {
	_, err := Build([]models.Comment{
		comment(1, nil),
		comment(2, ptr(42)),
		comment(3, ptr(43)),
	}, Options{Orphans: RejectOrphans})
	require.Error(t, err)

	var orphanErr *OrphanError
	require.True(t, errors.As(err, &orphanErr))
	assert.Equal(t, []uint{2, 3}, orphanErr.CommentIDs)
}

func TestBuild_SelfReferenceIsOrphan(t *testing.T) {
	forest, err := Build([]models.Comment{comment(7, ptr(7))}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []uint{7}, ids(forest))
}

func TestBuild_DepthCap(t *testing.T) {
	forest, err := Build([]models.Comment{
		comment(1, nil),
		comment(2, ptr(1)),
		comment(3, ptr(2)),
		comment(4, ptr(3)),
	}, Options{MaxDepth: 3})
	require.NoError(t, err)

	flat := Flatten(forest)
	require.Len(t, flat, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{flat[0].Level, flat[1].Level, flat[2].Level, flat[3].Level})
	assert.True(t, flat[0].CanReply)
	assert.True(t, flat[1].CanReply)
	assert.False(t, flat[2].CanReply)
	// deeper replies still render
	assert.False(t, flat[3].CanReply)
}

func TestBuild_RepeatableOnSameInput(t *testing.T) {
	input := []models.Comment{
		comment(3, ptr(1)),
		comment(1, nil),
		comment(2, ptr(9)),
	}

	first, err := Build(input, Options{})
	require.NoError(t, err)
	second, err := Build(input, Options{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, first[0], second[0])
}

func TestBuild_Empty(t *testing.T) {
	forest, err := Build(nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, forest)
}

func TestParseOrphanPolicy(t *testing.T) {
	p, err := ParseOrphanPolicy("DROP")
	require.NoError(t, err)
	assert.Equal(t, DropOrphans, p)

	p, err = ParseOrphanPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PromoteOrphans, p)

	_, err = ParseOrphanPolicy("cascade")
	assert.Error(t, err)
}

func TestLevelOf(t *testing.T) {
	parents := map[uint]*uint{1: nil, 2: ptr(1), 3: ptr(2)}
	lookup := func(id uint) (*uint, error) { return parents[id], nil }

	level, err := LevelOf(3, lookup)
	require.NoError(t, err)
	assert.Equal(t, 3, level)

	level, err = LevelOf(1, lookup)
	require.NoError(t, err)
	assert.Equal(t, 1, level)

	cyclic := map[uint]*uint{1: ptr(2), 2: ptr(1)}
	_, err = LevelOf(1, func(id uint) (*uint, error) { return cyclic[id], nil })
	assert.Error(t, err)
}
