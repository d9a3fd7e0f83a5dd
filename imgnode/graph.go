// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package imgnode

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"
)

// ErrCyclic is returned by Graph when the node subtree is not a DAG.
// Builder code that only ever appends closed subtrees as inputs can't
// produce this; it guards against a future builder bug (§9 property
// 1: acyclicity).
var ErrCyclic = fmt.Errorf("imgnode: node graph contains a cycle")

// vertexID assigns each Node a stable, unique Graphviz vertex id. Two
// distinct *Node values never collide even if they share a Name.
type vertexID struct {
	ids map[*Node]string
}

func newVertexID() *vertexID {
	return &vertexID{ids: make(map[*Node]string)}
}

// get returns n's vertex id, built as name + "_" + unique(node) per
// §4.5 Graph emission.
func (v *vertexID) get(n *Node) string {
	if id, ok := v.ids[n]; ok {
		return id
	}
	id := fmt.Sprintf("%s_%s", n.Name, strings.ReplaceAll(uuid.NewString(), "-", ""))
	v.ids[n] = id
	return id
}

// Graph renders the subtree rooted at root as Graphviz dot source,
// named graphName. It first validates acyclicity and computes a
// topological order via lvlath so that emission order is stable and
// independent of Go's map iteration (§4.5 Graph emission, §9
// property 1).
func Graph(root *Node, graphName string) (string, error) {
	g := core.NewGraph(core.WithDirected(true))
	ids := newVertexID()

	var walk func(n *Node)
	visited := map[*Node]bool{}
	walk = func(n *Node) {
		if visited[n] {
			return
		}
		visited[n] = true
		g.AddVertex(ids.get(n)) //nolint:errcheck

		for _, in := range n.Inputs {
			walk(in)
			g.AddVertex(ids.get(in)) //nolint:errcheck
			if _, err := g.AddEdge(ids.get(in), ids.get(n), 1); err != nil {
				// AddEdge only fails on missing vertices, which walk
				// guarantees exist by this point.
				panic(fmt.Sprintf("imgnode: graph: %v", err))
			}
		}
	}
	walk(root)

	if cyclic, _, err := dfs.DetectCycles(g); err != nil {
		return "", fmt.Errorf("imgnode: graph: cycle check: %w", err)
	} else if cyclic {
		return "", ErrCyclic
	}

	order, err := dfs.TopologicalSort(g)
	if err != nil {
		return "", fmt.Errorf("imgnode: graph: topological sort: %w", err)
	}

	byID := map[string]*Node{}
	for n, id := range ids.ids {
		byID[id] = n
	}

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", graphName)
	for _, id := range order {
		n := byID[id]
		if n == nil {
			continue
		}
		fmt.Fprintf(&b, "  %q [label=%q];\n", id, n.Label())
	}
	for _, id := range order {
		n := byID[id]
		if n == nil {
			continue
		}
		for _, in := range n.Inputs {
			fmt.Fprintf(&b, "  %q -> %q;\n", ids.get(in), id)
		}
	}
	b.WriteString("}\n")
	return b.String(), nil
}
