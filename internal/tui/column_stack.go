package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/tuner/internal/domain"
	"github.com/mmcdole/tuner/internal/tui/styles"
)

// nodeItem adapts a domain.Node to list.Item
type nodeItem struct {
	node domain.Node
}

func (i nodeItem) FilterValue() string { return i.node.Title }

// nodeDelegate renders one node per line
type nodeDelegate struct{}

func (nodeDelegate) Height() int                         { return 1 }
func (nodeDelegate) Spacing() int                        { return 0 }
func (nodeDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (nodeDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(nodeItem)
	if !ok {
		return
	}
	glyph := styles.StationGlyph
	if it.node.CanDrillDown() {
		glyph = styles.FolderGlyph
	}
	line := truncate(glyph+" "+it.node.Title, m.Width()-2)

	style := styles.NormalItemStyle
	if index == m.Index() {
		style = styles.SelectedItemStyle
	}
	fmt.Fprint(w, style.Width(m.Width()).Render(line))
}

// Column is one navigable list of nodes under a parent
type Column struct {
	ParentID string
	Title    string
	Loading  bool
	Search   bool // results of a search, not a catalog folder

	list list.Model
}

// NewColumn creates an empty column in the loading state
func NewColumn(parentID, title string) *Column {
	l := list.New(nil, nodeDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return &Column{ParentID: parentID, Title: title, Loading: true, list: l}
}

// SetNodes replaces the column contents, keeping the cursor in range
func (c *Column) SetNodes(nodes []domain.Node) {
	items := make([]list.Item, len(nodes))
	for i, n := range nodes {
		items[i] = nodeItem{node: n}
	}
	cursor := c.list.Index()
	c.list.SetItems(items)
	if cursor >= len(items) {
		cursor = len(items) - 1
	}
	c.list.Select(max(cursor, 0))
	c.Loading = false
}

// Len returns the number of nodes
func (c *Column) Len() int { return len(c.list.Items()) }

// Selected returns the node under the cursor
func (c *Column) Selected() (domain.Node, bool) {
	it, ok := c.list.SelectedItem().(nodeItem)
	if !ok {
		return domain.Node{}, false
	}
	return it.node, true
}

// Cursor returns the cursor position
func (c *Column) Cursor() int { return c.list.Index() }

func (c *Column) CursorUp()   { c.list.CursorUp() }
func (c *Column) CursorDown() { c.list.CursorDown() }
func (c *Column) Top()        { c.list.Select(0) }
func (c *Column) Bottom()     { c.list.Select(max(c.Len()-1, 0)) }

// SetSize sizes the inner list
func (c *Column) SetSize(width, height int) { c.list.SetSize(width, height) }

// View renders the list body
func (c *Column) View() string { return c.list.View() }

// ColumnStack manages the stack of navigable columns.
// The top column is always focused; the one beneath it is shown as context.
type ColumnStack struct {
	columns []*Column
}

// NewColumnStack creates a new empty column stack
func NewColumnStack() *ColumnStack {
	return &ColumnStack{}
}

// Len returns the number of columns in the stack
func (cs *ColumnStack) Len() int {
	return len(cs.columns)
}

// Top returns the topmost (focused) column
func (cs *ColumnStack) Top() *Column {
	if len(cs.columns) == 0 {
		return nil
	}
	return cs.columns[len(cs.columns)-1]
}

// Parent returns the column beneath the top, or nil at root
func (cs *ColumnStack) Parent() *Column {
	if len(cs.columns) < 2 {
		return nil
	}
	return cs.columns[len(cs.columns)-2]
}

// Push adds a new column to the stack
func (cs *ColumnStack) Push(col *Column) {
	cs.columns = append(cs.columns, col)
}

// Pop removes and returns the top column.
// Returns nil if the stack would become empty.
func (cs *ColumnStack) Pop() *Column {
	if len(cs.columns) <= 1 {
		return nil
	}
	popped := cs.columns[len(cs.columns)-1]
	cs.columns = cs.columns[:len(cs.columns)-1]
	return popped
}

// Find returns every catalog column showing parentID
func (cs *ColumnStack) Find(parentID string) []*Column {
	var out []*Column
	for _, col := range cs.columns {
		if !col.Search && col.ParentID == parentID {
			out = append(out, col)
		}
	}
	return out
}

// Breadcrumb joins the column titles from root to top
func (cs *ColumnStack) Breadcrumb() string {
	crumb := ""
	for i, col := range cs.columns {
		if i > 0 {
			crumb += " > "
		}
		crumb += col.Title
	}
	return crumb
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
