package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/tuner/internal/domain"
)

const requestTimeout = 10 * time.Second

// Browser is the browsing protocol the TUI drives
type Browser interface {
	Subscribe(ctx context.Context, sub domain.Subscriber, parentID string) error
	Unsubscribe(ctx context.Context, sub domain.Subscriber, parentID string) error
	LibraryRoot(ctx context.Context, sub domain.Subscriber) (domain.Node, error)
	Children(ctx context.Context, sub domain.Subscriber, parentID string, page, pageSize int) ([]domain.Node, error)
	Item(ctx context.Context, sub domain.Subscriber, id string) (domain.Node, error)
	Search(ctx context.Context, sub domain.Subscriber, query string) ([]domain.Node, error)
}

// Listener yields the next children-changed notification
type Listener interface {
	Listen() tea.Cmd
}

// Command factories for async operations

// LoadRootCmd fetches the library root
func LoadRootCmd(b Browser, sub domain.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		root, err := b.LibraryRoot(ctx, sub)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading root"}
		}
		return RootLoadedMsg{Root: root}
	}
}

// LoadChildrenCmd subscribes to parentID and fetches its children
func LoadChildrenCmd(b Browser, sub domain.Subscriber, parentID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		if err := b.Subscribe(ctx, sub, parentID); err != nil {
			return ErrMsg{Err: err, Context: "subscribing"}
		}
		items, err := b.Children(ctx, sub, parentID, 0, 0)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading " + parentID}
		}
		return ChildrenLoadedMsg{ParentID: parentID, Items: items}
	}
}

// UnsubscribeCmd drops the subscription to parentID
func UnsubscribeCmd(b Browser, sub domain.Subscriber, parentID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		if err := b.Unsubscribe(ctx, sub, parentID); err != nil {
			return ErrMsg{Err: err, Context: "unsubscribing"}
		}
		return nil
	}
}

// LoadItemCmd fetches a single playable item
func LoadItemCmd(b Browser, sub domain.Subscriber, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		item, err := b.Item(ctx, sub, id)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading item"}
		}
		return ItemLoadedMsg{Item: item}
	}
}

// SearchCmd runs a catalog search
func SearchCmd(b Browser, sub domain.Subscriber, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		results, err := b.Search(ctx, sub, query)
		if err != nil {
			return ErrMsg{Err: err, Context: "searching"}
		}
		return SearchResultsMsg{Query: query, Results: results}
	}
}
