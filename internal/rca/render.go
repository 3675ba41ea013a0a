package rca

import (
	"fmt"
	"io"
	"strings"

	"github.com/platformbuilds/mirador-watchdog/internal/format"
	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

// RenderOptions controls Forest.Render.
type RenderOptions struct {
	// IncludeLeafRoots prints roots that have no explaining children. By
	// default only roots with at least one child are drawn.
	IncludeLeafRoots bool
	// Describe formats one node. Defaults to format.Describe.
	Describe func(models.Slice) string
}

// Render draws every tree with box connectors, one node per line.
func (f *Forest) Render(w io.Writer, opts RenderOptions) error {
	describe := opts.Describe
	if describe == nil {
		describe = format.Describe
	}

	var draw func(id int, prefix string, last, root bool) error
	draw = func(id int, prefix string, last, root bool) error {
		n := &f.Nodes[id]
		connector, childPrefix := "", ""
		if !root {
			connector, childPrefix = "├── ", prefix+"│   "
			if last {
				connector, childPrefix = "└── ", prefix+"    "
			}
		}
		if _, err := fmt.Fprintln(w, prefix+connector+describe(n.Slice)); err != nil {
			return err
		}
		for i, c := range n.Children {
			if err := draw(c, childPrefix, i == len(n.Children)-1, false); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range f.Roots {
		if len(f.Nodes[r].Children) == 0 && !opts.IncludeLeafRoots {
			continue
		}
		if err := draw(r, "", true, true); err != nil {
			return err
		}
	}
	return nil
}

// Text renders the forest with default options.
func (f *Forest) Text() string {
	var b strings.Builder
	_ = f.Render(&b, RenderOptions{})
	return b.String()
}
