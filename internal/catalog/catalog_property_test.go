package catalog

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/wikibuilder/internal/page"
)

var titlePool = []string{"Setup", "setup", "Intro", "intro", "DNS", "Éclair", "éclair", ""}

func lowerKey(s string) string {
	return cases.Lower(language.Und).String(s)
}

func flatten(n *Node) []string {
	out := []string{n.Path}
	for _, c := range n.Children {
		out = append(out, flatten(c)...)
	}
	return out
}

func shuffleTree(n *Node, r *rand.Rand) {
	r.Shuffle(len(n.Children), func(i, j int) {
		n.Children[i], n.Children[j] = n.Children[j], n.Children[i]
	})
	for _, c := range n.Children {
		shuffleTree(c, r)
	}
}

// TestSortProperties checks that sorting is independent of input order.
func TestSortProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("sort is permutation independent", prop.ForAll(
		func(picks []int, dirs []string, seed int64) bool {
			pages := make(map[string]page.Metadata, len(picks))
			for i, pick := range picks {
				title := titlePool[pick]
				rel := fmt.Sprintf("doc%d.md", i)
				if len(dirs) > 0 {
					rel = dirs[i%len(dirs)] + "/" + rel
				}
				pages[rel] = meta(rel, title)
			}

			first := Build(pages, "md")
			Sort(first)

			second := Build(pages, "md")
			shuffleTree(second, rand.New(rand.NewSource(seed)))
			Sort(second)

			a, b := flatten(first), flatten(second)
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(titlePool)-1)),
		gen.SliceOfN(3, gen.RegexMatch(`^[a-zA-Z]{1,4}$`)),
		gen.Int64(),
	))

	properties.Property("sorted children are ordered", prop.ForAll(
		func(titles []string) bool {
			pages := make(map[string]page.Metadata, len(titles))
			for i, title := range titles {
				rel := fmt.Sprintf("d%d.md", i)
				pages[rel] = meta(rel, title)
			}
			tree := Build(pages, "md")
			Sort(tree)
			for i := 1; i < len(tree.Children); i++ {
				prev := sortEntry{node: tree.Children[i-1], key: tree.Children[i-1].key()}
				cur := sortEntry{node: tree.Children[i], key: tree.Children[i].key()}
				prev.lower, cur.lower = lowerKey(prev.key), lowerKey(cur.key)
				if compare(prev, cur) > 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
