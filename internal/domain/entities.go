package domain

// Reserved catalog identifiers
const (
	// RootID identifies the browse root. It is never shown as a labeled item.
	RootID = "MEDIA_ID_ROOT"

	// RadiosID identifies the "Radios" category folder.
	RadiosID = "MEDIA_ID_RADIOS"
)

// NodeKind distinguishes folders from playable leaves
type NodeKind int

const (
	KindFolder NodeKind = iota
	KindPlayable
)

// String returns a human-readable representation of the node kind
func (k NodeKind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindPlayable:
		return "playable"
	default:
		return "unknown"
	}
}

// MediaType mirrors the platform's media metadata type for a node
type MediaType int

const (
	MediaTypeFolderRadioStations MediaType = iota
	MediaTypeMusic
)

// String returns a human-readable representation of the media type
func (m MediaType) String() string {
	switch m {
	case MediaTypeFolderRadioStations:
		return "folder_radio_stations"
	case MediaTypeMusic:
		return "music"
	default:
		return "unknown"
	}
}

// Node is a single entry of the browse tree: either a folder or a playable item.
// Node values are regenerated on every query; only ID is stable across calls.
type Node struct {
	ID          string    `json:"id"`                    // Unique within the tree
	Title       string    `json:"title,omitempty"`       // Display title (empty for root)
	Subtitle    string    `json:"subtitle,omitempty"`    // Secondary display line
	Description string    `json:"description,omitempty"` // e.g. genre
	Kind        NodeKind  `json:"kind"`
	MediaType   MediaType `json:"mediaType"`
	Browsable   bool      `json:"browsable"`
	Playable    bool      `json:"playable"`

	// Playable-only fields
	SourceURI  string `json:"sourceUri,omitempty"`  // Stream locator
	MimeType   string `json:"mimeType,omitempty"`   // e.g. audio/mpeg
	ArtworkURI string `json:"artworkUri,omitempty"` // Image locator
}

// IsRoot reports whether the node is the browse root
func (n Node) IsRoot() bool {
	return n.ID == RootID
}

// GetID returns the node identifier
func (n Node) GetID() string { return n.ID }

// GetTitle returns the display title
func (n Node) GetTitle() string { return n.Title }

// CanDrillDown returns true if the node has browsable children
func (n Node) CanDrillDown() bool { return n.Browsable }
