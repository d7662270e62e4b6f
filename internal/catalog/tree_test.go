package catalog

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/tuner/internal/domain"
)

func TestRootIsBrowsableFolder(t *testing.T) {
	root := NewTree().Root()

	assert.Equal(t, domain.RootID, root.ID)
	assert.True(t, root.Browsable)
	assert.False(t, root.Playable)
	assert.Equal(t, domain.KindFolder, root.Kind)
	assert.Empty(t, root.Title)
}

func TestChildrenOfRoot(t *testing.T) {
	children, err := NewTree().Children(domain.RootID)
	require.NoError(t, err)
	require.Len(t, children, 1)

	radios := children[0]
	assert.Equal(t, domain.RadiosID, radios.ID)
	assert.Equal(t, "Radios", radios.Title)
	assert.Equal(t, domain.KindFolder, radios.Kind)
	assert.True(t, radios.Browsable)
	assert.False(t, radios.Playable)
}

func TestChildrenOfRadios(t *testing.T) {
	children, err := NewTree().Children(domain.RadiosID)
	require.NoError(t, err)
	require.Len(t, children, StationCount)

	for i, n := range children {
		id := strconv.Itoa(i)
		assert.Equal(t, id, n.ID)
		assert.Equal(t, "Title "+id, n.Title)
		assert.Equal(t, "Sub Title "+id, n.Subtitle)
		assert.Equal(t, "Genre", n.Description)
		assert.Equal(t, domain.KindPlayable, n.Kind)
		assert.True(t, n.Playable)
		assert.False(t, n.Browsable)
		assert.NotEmpty(t, n.SourceURI)
		assert.Equal(t, "audio/mpeg", n.MimeType)
		assert.Equal(t, StationArtURI, n.ArtworkURI)
	}
}

func TestChildrenOfUnknownParentIsEmpty(t *testing.T) {
	tree := NewTree()
	for _, id := range []string{"", "0", "10", "MEDIA_ID_UNKNOWN", "media_id_root"} {
		children, err := tree.Children(id)
		require.NoError(t, err, id)
		assert.NotNil(t, children, id)
		assert.Empty(t, children, id)
	}
}

func TestStrictTreeRejectsUnknownParent(t *testing.T) {
	tree := NewTree(WithStrict(true))

	_, err := tree.Children("nope")
	require.ErrorIs(t, err, domain.ErrUnknownParent)

	children, err := tree.Children(domain.RadiosID)
	require.NoError(t, err)
	assert.Len(t, children, StationCount)
}

func TestChildrenAreRegenerated(t *testing.T) {
	tree := NewTree()
	first, err := tree.Children(domain.RadiosID)
	require.NoError(t, err)

	first[0].Title = "mutated"

	second, err := tree.Children(domain.RadiosID)
	require.NoError(t, err)
	assert.Equal(t, "Title 0", second[0].Title)
}

func TestItem(t *testing.T) {
	tree := NewTree()

	root, err := tree.Item(domain.RootID)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())

	radios, err := tree.Item(domain.RadiosID)
	require.NoError(t, err)
	assert.Equal(t, "Radios", radios.Title)

	station, err := tree.Item("7")
	require.NoError(t, err)
	assert.Equal(t, "Title 7", station.Title)

	_, err = tree.Item("11")
	require.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestIsDynamic(t *testing.T) {
	tree := NewTree()
	assert.True(t, tree.IsDynamic(domain.RadiosID))
	assert.False(t, tree.IsDynamic(domain.RootID))
	assert.False(t, tree.IsDynamic("3"))
}
