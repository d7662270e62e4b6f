// Package catalog builds the browse tree served to media-browser clients.
package catalog

import (
	"fmt"
	"strconv"

	"github.com/mmcdole/tuner/internal/domain"
)

// Placeholder station data
const (
	RadiosTitle   = "Radios"
	StationCount  = 11
	StationURI    = "http://some.radio.station"
	StationArtURI = "content://some.radio.station.image"
	StationMime   = "audio/mpeg"
	StationGenre  = "Genre"
)

// parentKind is the set of parents the tree knows how to expand
type parentKind int

const (
	parentUnknown parentKind = iota
	parentRoot
	parentRadios
)

func classify(parentID string) parentKind {
	switch parentID {
	case domain.RootID:
		return parentRoot
	case domain.RadiosID:
		return parentRadios
	default:
		return parentUnknown
	}
}

// Tree is the in-memory catalog. It holds no node state: children are
// regenerated on every call.
type Tree struct {
	strict     bool
	generators map[parentKind]func() []domain.Node
}

// Option configures a Tree
type Option func(*Tree)

// WithStrict makes Children fail with domain.ErrUnknownParent for unknown parents
// instead of returning an empty slice.
func WithStrict(strict bool) Option {
	return func(t *Tree) { t.strict = strict }
}

// NewTree creates the radio catalog
func NewTree(opts ...Option) *Tree {
	t := &Tree{}
	for _, opt := range opts {
		opt(t)
	}
	t.generators = map[parentKind]func() []domain.Node{
		parentRoot:   rootChildren,
		parentRadios: stations,
	}
	return t
}

// Root returns the browse root
func (t *Tree) Root() domain.Node {
	return domain.Node{
		ID:        domain.RootID,
		Kind:      domain.KindFolder,
		MediaType: domain.MediaTypeFolderRadioStations,
		Browsable: true,
		Playable:  false,
	}
}

// Children returns the children of parentID in generation order
func (t *Tree) Children(parentID string) ([]domain.Node, error) {
	gen, ok := t.generators[classify(parentID)]
	if !ok {
		if t.strict {
			return nil, fmt.Errorf("children of %q: %w", parentID, domain.ErrUnknownParent)
		}
		return []domain.Node{}, nil
	}
	return gen(), nil
}

// Item looks up a single node by walking the tree from the root
func (t *Tree) Item(id string) (domain.Node, error) {
	if id == domain.RootID {
		return t.Root(), nil
	}
	for _, folder := range rootChildren() {
		if folder.ID == id {
			return folder, nil
		}
		children, err := t.Children(folder.ID)
		if err != nil {
			continue
		}
		for _, child := range children {
			if child.ID == id {
				return child, nil
			}
		}
	}
	return domain.Node{}, fmt.Errorf("item %q: %w", id, domain.ErrItemNotFound)
}

// IsDynamic reports whether queries for parentID should be followed by a
// children-changed notification
func (t *Tree) IsDynamic(parentID string) bool {
	return classify(parentID) == parentRadios
}

func rootChildren() []domain.Node {
	return []domain.Node{folder(domain.RadiosID, RadiosTitle)}
}

func stations() []domain.Node {
	nodes := make([]domain.Node, 0, StationCount)
	for i := 0; i < StationCount; i++ {
		nodes = append(nodes, station(strconv.Itoa(i)))
	}
	return nodes
}

func folder(id, title string) domain.Node {
	return domain.Node{
		ID:        id,
		Title:     title,
		Kind:      domain.KindFolder,
		MediaType: domain.MediaTypeFolderRadioStations,
		Browsable: true,
		Playable:  false,
	}
}

func station(id string) domain.Node {
	return domain.Node{
		ID:          id,
		Title:       "Title " + id,
		Subtitle:    "Sub Title " + id,
		Description: StationGenre,
		Kind:        domain.KindPlayable,
		MediaType:   domain.MediaTypeMusic,
		Browsable:   false,
		Playable:    true,
		SourceURI:   StationURI,
		MimeType:    StationMime,
		ArtworkURI:  StationArtURI,
	}
}
