package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds effects, audio tracks and the cache policy to labels.
	Detailed bool
}

// ToDOT converts a scene tree to Graphviz DOT. Durations are shown when the
// scenes have been resolved.
func ToDOT(scenes []spec.Scene, opts Options) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	w := &writer{buf: &buf, opts: opts}
	if err := w.level("", scenes, true); err != nil {
		return "", err
	}
	buf.WriteString("}\n")
	return buf.String(), nil
}

type writer struct {
	buf  *bytes.Buffer
	opts Options
	n    int
}

// level writes scenes and their descendants. Node names are generated
// because ids are only unique among siblings of one spec.
func (w *writer) level(parent string, scenes []spec.Scene, sequential bool) error {
	names := make([]string, len(scenes))
	for i, s := range scenes {
		w.n++
		names[i] = fmt.Sprintf("n%d", w.n)
		fmt.Fprintf(w.buf, "  %s [%s];\n", names[i], strings.Join(fmtAttrs(s, fmtLabel(s, w.opts.Detailed)), ", "))
		if parent != "" {
			fmt.Fprintf(w.buf, "  %s -> %s [color=grey];\n", parent, names[i])
		}
		if p, ok := s.(spec.Parent); ok {
			children, err := p.Children()
			if err != nil {
				return err
			}
			if err := w.level(names[i], children, p.Sequential()); err != nil {
				return err
			}
		}
	}
	if sequential && len(names) > 1 {
		fmt.Fprintf(w.buf, "  { rank=same; %s }\n", strings.Join(names, "; "))
		for i := 0; i+1 < len(scenes); i++ {
			attrs := []string{"style=bold"}
			if t := scenes[i].Common().Transition; t != nil {
				attrs = append(attrs, fmt.Sprintf("label=%q", fmt.Sprintf("%s %gs", t.Kind, t.Duration)))
			}
			fmt.Fprintf(w.buf, "  %s -> %s [%s];\n", names[i], names[i+1], strings.Join(attrs, ", "))
		}
	}
	return nil
}

func fmtLabel(s spec.Scene, detailed bool) string {
	b := s.Common()
	lines := []string{b.ID, string(s.Kind())}
	if d, ok := b.Resolved.Seconds(); ok {
		lines[1] += fmt.Sprintf(" · %gs", d)
	}
	if !detailed {
		return strings.Join(lines, "\n")
	}
	if len(b.Effects) > 0 {
		types := make([]string, len(b.Effects))
		for i, e := range b.Effects {
			types[i] = e.Type()
		}
		lines = append(lines, "effects: "+strings.Join(types, ", "))
	}
	if len(b.Audio) > 0 {
		lines = append(lines, fmt.Sprintf("audio: %d", len(b.Audio)))
	}
	if b.Cache != nil {
		lines = append(lines, "cached")
	}
	return strings.Join(lines, "\n")
}

func fmtAttrs(s spec.Scene, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch s.Common().Mode {
	case spec.ModeMask:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	case spec.ModeExclude:
		attrs = append(attrs, "style=\"rounded,filled,dotted\"", "fillcolor=lightgrey")
	}
	if _, ok := s.(spec.Parent); ok {
		attrs = append(attrs, "fillcolor=lightblue")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one whose
// width and height match the viewBox, so the diagram scales in browsers.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
