// Package io provides JSON import and export for resolved timelines.
//
// # Overview
//
// A resolved spec can be written as a timeline document: the video settings,
// the total length and every scene with its absolute start time. The format
// is used by `sceneweaver timeline --json`, by the preview server's
// /timeline endpoint, and by external tools such as editors that want to line
// up narration with the video.
//
// # JSON Format
//
//	{
//	  "spec": "/videos/demo/video.yaml",
//	  "settings": {"width": 1920, "height": 1080, "fps": 30, "output_file": "out.mp4"},
//	  "total": 9,
//	  "scenes": [
//	    {"id": "intro", "kind": "title_card", "composite_mode": "layer",
//	     "depth": 0, "start": 0, "duration": 4, "transition": 1, "cacheable": false, "cached": false},
//	    {"id": "demo", "kind": "video", "composite_mode": "layer",
//	     "depth": 0, "start": 3, "duration": 6, "cacheable": true, "cached": true}
//	  ]
//	}
//
// Scenes are listed in pre-order; depth is 0 for top-level scenes and grows
// by one for every enclosing composite or template.
//
// # Import
//
// Use [ImportJSON] to read a document from a file path, or [ReadJSON] to read
// from any io.Reader. Both check that the settings are usable and that no
// scene has a negative start or duration.
//
// # Export
//
// Use [ExportJSON] to write a document to a file, or [WriteJSON] to write to
// any io.Writer. [NewDocument] builds a document from a resolved spec.
package io
