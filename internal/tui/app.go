package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/tuner/internal/domain"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateSearching
)

// Layout proportions
const (
	ParentColumnPercent = 35
	MinColumnWidth      = 15

	// Vertical layout: breadcrumb + footer
	ChromeHeight = 2
)

const rootTitle = "Library"

// Model is the main Bubble Tea model for the browser
type Model struct {
	State ApplicationState
	Ready bool

	browser  Browser
	sub      domain.Subscriber
	listener Listener

	ColumnStack *ColumnStack
	SearchInput textinput.Model

	Width  int
	Height int

	StatusMsg     string
	StatusIsErr   bool
	Notifications int // children-changed notifications received
}

// NewModel creates a browser model acting as sub.
// listener may be nil when notifications are not wired.
func NewModel(browser Browser, sub domain.Subscriber, listener Listener) Model {
	ti := textinput.New()
	ti.Placeholder = "search stations"
	ti.CharLimit = 64

	return Model{
		State:       StateBrowsing,
		browser:     browser,
		sub:         sub,
		listener:    listener,
		ColumnStack: NewColumnStack(),
		SearchInput: ti,
	}
}

// Init loads the root and starts listening for notifications
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		LoadRootCmd(m.browser, m.sub),
		m.listen(),
	)
}

func (m Model) listen() tea.Cmd {
	if m.listener == nil {
		return nil
	}
	return m.listener.Listen()
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		if m.State == StateSearching {
			return m.handleSearchKey(msg)
		}
		return m.handleKeyMsg(msg)

	case RootLoadedMsg:
		title := msg.Root.Title
		if title == "" {
			title = rootTitle
		}
		m.ColumnStack = NewColumnStack()
		m.pushColumn(NewColumn(msg.Root.ID, title))
		return m, LoadChildrenCmd(m.browser, m.sub, msg.Root.ID)

	case ChildrenLoadedMsg:
		for _, col := range m.ColumnStack.Find(msg.ParentID) {
			col.SetNodes(msg.Items)
		}
		return m, nil

	case ChildrenChangedMsg:
		m.Notifications++
		m.StatusMsg = fmt.Sprintf("%s changed (%d items)", msg.ParentID, msg.ItemCount)
		m.StatusIsErr = false
		cmds := []tea.Cmd{m.listen()}
		if len(m.ColumnStack.Find(msg.ParentID)) > 0 {
			cmds = append(cmds, LoadChildrenCmd(m.browser, m.sub, msg.ParentID))
		}
		return m, tea.Batch(cmds...)

	case ItemLoadedMsg:
		m.StatusMsg = fmt.Sprintf("%s  %s", msg.Item.Title, msg.Item.SourceURI)
		m.StatusIsErr = false
		return m, nil

	case SearchResultsMsg:
		col := NewColumn("", fmt.Sprintf("Search %q", msg.Query))
		col.Search = true
		col.SetNodes(msg.Results)
		m.pushColumn(col)
		m.StatusMsg = fmt.Sprintf("%d results", len(msg.Results))
		m.StatusIsErr = false
		return m, nil

	case ErrMsg:
		m.StatusMsg = msg.Error()
		m.StatusIsErr = true
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Search):
		m.State = StateSearching
		m.SearchInput.SetValue("")
		return m, m.SearchInput.Focus()
	}

	top := m.ColumnStack.Top()
	if top == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, Keys.Up):
		top.CursorUp()
	case key.Matches(msg, Keys.Down):
		top.CursorDown()
	case key.Matches(msg, Keys.Home):
		top.Top()
	case key.Matches(msg, Keys.End):
		top.Bottom()

	case key.Matches(msg, Keys.Enter):
		node, ok := top.Selected()
		if !ok {
			return m, nil
		}
		if node.CanDrillDown() {
			m.pushColumn(NewColumn(node.ID, node.Title))
			return m, LoadChildrenCmd(m.browser, m.sub, node.ID)
		}
		return m, LoadItemCmd(m.browser, m.sub, node.ID)

	case key.Matches(msg, Keys.Back), key.Matches(msg, Keys.Escape):
		popped := m.ColumnStack.Pop()
		if popped == nil || popped.Search {
			return m, nil
		}
		return m, UnsubscribeCmd(m.browser, m.sub, popped.ParentID)

	case key.Matches(msg, Keys.Refresh):
		if top.Search {
			return m, nil
		}
		top.Loading = true
		return m, LoadChildrenCmd(m.browser, m.sub, top.ParentID)
	}

	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.State = StateBrowsing
		m.SearchInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.State = StateBrowsing
		m.SearchInput.Blur()
		return m, SearchCmd(m.browser, m.sub, m.SearchInput.Value())
	}

	var cmd tea.Cmd
	m.SearchInput, cmd = m.SearchInput.Update(msg)
	return m, cmd
}

func (m *Model) pushColumn(col *Column) {
	m.ColumnStack.Push(col)
	m.updateLayout()
}

// updateLayout sizes the visible columns to the window
func (m *Model) updateLayout() {
	if !m.Ready {
		return
	}
	l := m.calculateColumnLayout(m.Width)
	height := max(m.Height-ChromeHeight-2, 1) // borders
	if parent := m.ColumnStack.Parent(); parent != nil {
		parent.SetSize(max(l.parentWidth-2, 1), height)
	}
	if top := m.ColumnStack.Top(); top != nil {
		top.SetSize(max(l.activeWidth-2, 1), height)
	}
}

// columnLayout holds calculated column widths for the View
type columnLayout struct {
	parentWidth int // 0 if not shown
	activeWidth int
}

func (m Model) calculateColumnLayout(availableWidth int) columnLayout {
	if m.ColumnStack.Len() < 2 {
		return columnLayout{activeWidth: availableWidth}
	}
	parent := max(availableWidth*ParentColumnPercent/100, MinColumnWidth)
	return columnLayout{
		parentWidth: parent,
		activeWidth: max(availableWidth-parent, MinColumnWidth),
	}
}
