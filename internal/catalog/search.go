package catalog

import (
	"sort"
	"strings"

	fuzzysearch "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/tuner/internal/domain"
)

// titleIndex implements sahilm/fuzzy.Source over node titles
type titleIndex struct {
	nodes       []domain.Node
	lowerTitles []string
}

func newTitleIndex(nodes []domain.Node) *titleIndex {
	idx := &titleIndex{nodes: nodes, lowerTitles: make([]string, len(nodes))}
	for i, n := range nodes {
		idx.lowerTitles[i] = strings.ToLower(n.Title)
	}
	return idx
}

func (idx *titleIndex) String(i int) string { return idx.lowerTitles[i] }
func (idx *titleIndex) Len() int            { return len(idx.nodes) }

// Search returns playable nodes matching query, best match first.
//
// Titles are ranked with sahilm/fuzzy. When no title matches, subtitle and
// description are tried with a normalized subsequence match and ranked by
// edit distance.
func (t *Tree) Search(query string) []domain.Node {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	playable := t.playableNodes()
	if len(playable) == 0 {
		return nil
	}

	idx := newTitleIndex(playable)
	matches := fuzzy.FindFrom(strings.ToLower(query), idx)
	if len(matches) > 0 {
		results := make([]domain.Node, len(matches))
		for i, m := range matches {
			results[i] = playable[m.Index]
		}
		return results
	}

	secondary := make([]string, len(playable))
	for i, n := range playable {
		secondary[i] = n.Subtitle + " " + n.Description
	}
	ranks := fuzzysearch.RankFindNormalizedFold(query, secondary)
	sort.Sort(ranks)

	results := make([]domain.Node, len(ranks))
	for i, r := range ranks {
		results[i] = playable[r.OriginalIndex]
	}
	return results
}

// playableNodes walks every browsable folder reachable from the root
func (t *Tree) playableNodes() []domain.Node {
	var out []domain.Node
	seen := map[string]bool{}
	queue := []string{domain.RootID}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		if seen[parent] {
			continue
		}
		seen[parent] = true

		children, err := t.Children(parent)
		if err != nil {
			continue
		}
		for _, c := range children {
			if c.Playable {
				out = append(out, c)
			}
			if c.Browsable {
				queue = append(queue, c.ID)
			}
		}
	}
	return out
}
