package tui

import "github.com/mmcdole/tuner/internal/domain"

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// RootLoadedMsg signals that the library root was fetched
type RootLoadedMsg struct {
	Root domain.Node
}

// ChildrenLoadedMsg signals that the children of ParentID were fetched
type ChildrenLoadedMsg struct {
	ParentID string
	Items    []domain.Node
}

// ItemLoadedMsg signals that a playable item was selected and fetched
type ItemLoadedMsg struct {
	Item domain.Node
}

// SearchResultsMsg signals that search results are ready
type SearchResultsMsg struct {
	Query   string
	Results []domain.Node
}

// ChildrenChangedMsg is a children-changed notification addressed to this client
type ChildrenChangedMsg struct {
	ParentID  string
	ItemCount int
}
