// Package proctree defines the Process Supervisor interface (spec.md §4.7
// collaborator) the Debug Dispatcher consumes for periodic process-tree
// snapshots, plus a StaticTree reference implementation grounded on the
// teacher's appserver.go "who" session-table listing generalized from a
// flat client table to an arbitrary tree.
package proctree

import (
	"fmt"
	"strings"
)

// Tree is the external collaborator the core only consumes a string
// emitter and buffer from (spec.md §1's "out of scope" list). TreeRender
// writes a rendered snapshot into buf (bounded by len(buf)) and returns the
// number of bytes written; detailed/colored select verbosity and ANSI
// color, mirroring the original tree_render(buf, buf_end, detailed,
// colored) signature.
type Tree interface {
	TreeRender(buf []byte, detailed, colored bool) int
}

// Node is one entry in a StaticTree.
type Node struct {
	Name     string
	State    string // e.g. "RUNNING", "BLOCKED", "SUSPENDED".
	Children []*Node
}

// StaticTree is a Tree backed by an in-memory node graph — adequate for a
// host-side simulator or a process tree assembled once at startup and
// updated by external pokes between snapshots, matching the "≤32 commands,
// no dynamic allocation" spirit of the rest of the core (spec.md design
// note §9) while still being mutable for use in long-running processes.
type StaticTree struct {
	Root *Node
}

// NewStaticTree wraps root (nil creates an empty root).
func NewStaticTree(root *Node) *StaticTree {
	if root == nil {
		root = &Node{Name: "root", State: "RUNNING"}
	}
	return &StaticTree{Root: root}
}

// TreeRender depth-first renders the tree starting at Root, one line per
// node indented by depth, bounded by len(buf). Colored wraps the state
// field in an ANSI SGR sequence chosen by state name; detailed appends
// each node's child count.
func (t *StaticTree) TreeRender(buf []byte, detailed, colored bool) int {
	var sb strings.Builder
	renderNode(&sb, t.Root, 0, detailed, colored)
	return copy(buf, sb.String())
}

func renderNode(sb *strings.Builder, n *Node, depth int, detailed, colored bool) {
	if n == nil {
		return
	}
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(n.Name)
	sb.WriteString(" [")
	sb.WriteString(colorState(n.State, colored))
	sb.WriteString("]")
	if detailed {
		fmt.Fprintf(sb, " children=%d", len(n.Children))
	}
	sb.WriteString("\n")
	for _, c := range n.Children {
		renderNode(sb, c, depth+1, detailed, colored)
	}
}

func colorState(state string, colored bool) string {
	if !colored {
		return state
	}
	code := "37"
	switch state {
	case "RUNNING":
		code = "32"
	case "BLOCKED", "SUSPENDED":
		code = "33"
	case "DEAD":
		code = "31"
	}
	return "\x1b[" + code + "m" + state + "\x1b[0m"
}
