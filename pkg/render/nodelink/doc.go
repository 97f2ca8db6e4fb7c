// Package nodelink renders scene trees as node-link diagrams.
//
// # Overview
//
// Every scene becomes a box labelled with its id, kind and resolved
// duration. Children hang below their composite or template parent.
// Siblings that play in sequence are chained left to right, with the
// transition between them written on the connecting edge. Mask and exclude
// scenes are drawn dashed and dotted so compositing groups stand out.
//
// # Usage
//
//	dot, err := nodelink.ToDOT(v.Scenes, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering, so no Graphviz installation is needed.
package nodelink
