// Package pkg provides the core libraries for sceneweaver, a renderer for
// declarative video specs.
//
// # Overview
//
// A spec is a YAML file of settings and an ordered list of scenes. Scenes are
// leaves (color, image, svg, video, video-images, title_card) or parents
// (composite, template) that own child scenes. Every scene ends up with a
// concrete duration, is rendered into a clip, and the top-level clips are
// joined into one video.
//
// # Architecture
//
// The data flow through a generate run:
//
//	video.yaml
//	     ↓
//	[spec] package (decode, validate, expand templates)
//	     ↓
//	[timeline] package (resolve durations, lay out start times)
//	     ↓
//	[compose] + [render] + [effects] packages (clips per scene)
//	     ↓
//	[ffmpeg] package (encode segments, concatenate with transitions)
//	     ↓
//	output.mp4
//
// [pipeline] orchestrates the stages and consults [cache] for scenes that
// declare a cache policy.
//
// # Main Packages
//
//   - [spec]: Scene variants, effects, transitions, audio and settings
//   - [templates]: Template package lookup and parameter rendering
//   - [timeline]: Duration resolution and timeline layout
//   - [clip]: The clip value model: frame sources, masks, time maps
//   - [effects]: Effect application and per-render consumption tracking
//   - [compose]: Layering, masking and sequencing of child clips
//   - [render]: Built-in leaf renderers and SVG rasterization
//   - [render/nodelink]: Scene tree diagrams via Graphviz
//   - [ffmpeg]: Encoding, concatenation and media probing
//   - [cache]: Content-addressed scene store with SQLite or Redis index
//   - [assets]: Asset discovery and hashing for cache fingerprints
//   - [io]: JSON timeline documents
//   - [pipeline]: The load → resolve → render → assemble runner
//
// # Supporting Packages
//
//   - [errors]: Structured error codes
//   - [observability]: Hooks for metrics and tracing
//   - [fonts]: Embedded title card fonts
//   - [buildinfo]: Version information set at build time
package pkg
