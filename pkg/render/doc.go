// Package render produces the clips of leaf scenes.
//
// [Builtin] implements compose.Renderer for every leaf scene kind:
//
//   - color: a solid source
//   - image: the image placed on its background with annotations drawn over it
//   - svg: an SVG template rasterized once, or once per frame when it
//     depends on progress
//   - video and video-images: file and frame sequence sources
//   - title_card: text drawn with embedded fonts
//
// Still frames are written as PNG files into the renderer's work directory;
// the ffmpeg package turns the returned clips into video. SVG rasterization
// uses the external rsvg-convert tool (from librsvg), see [Rasterizer].
package render
