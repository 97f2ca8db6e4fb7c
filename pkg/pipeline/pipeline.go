// Package pipeline provides the generate pipeline for sceneweaver.
//
// This package implements the complete load → resolve → render → assemble
// pipeline used by the CLI and the preview server. Centralizing it keeps the
// entry points consistent.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Load: read the spec file, expand templates and validate the scene tree
//  2. Resolve: give every scene a concrete duration
//  3. Render: compose each top-level scene into a clip and encode it to a
//     segment, consulting the scene cache first
//  4. Assemble: concatenate the segments in order into the output file
//
// Load and Resolve can be run on their own, which is what `validate`,
// `timeline` and `serve` do.
//
// # Usage
//
//	runner := pipeline.NewRunner(manager, ffmpeg.New(), logger)
//	result, err := runner.Generate(ctx, pipeline.Options{Spec: "video.yaml"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Output, result.Duration)
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/matzehuels/sceneweaver/pkg/spec"
	"github.com/matzehuels/sceneweaver/pkg/timeline"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultWorkers is used when the CPU count cannot be determined.
	DefaultWorkers = 4

	// MaxWorkers caps parallel scene renders. Each render runs its own ffmpeg
	// process, so more workers than this mostly adds memory pressure.
	MaxWorkers = 16
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one generate run.
type Options struct {
	// Spec is the spec file, optionally suffixed with ":scene_id" to render a
	// single top-level scene.
	Spec string `json:"spec"`
	// SceneID restricts the run to one top-level scene. It overrides the
	// suffix of Spec.
	SceneID string `json:"scene_id,omitempty"`
	// Output overrides the spec's output_file.
	Output string `json:"output,omitempty"`

	// Force re-renders cached scenes and refreshes their cache entries.
	Force bool `json:"force,omitempty"`
	// NoCache ignores every scene's cache policy.
	NoCache bool `json:"no_cache,omitempty"`
	// Workers bounds concurrent top-level scene renders.
	Workers int `json:"workers,omitempty"`
	// TemplatePaths are searched for template packages after the spec's own
	// templates directory.
	TemplatePaths []string `json:"template_paths,omitempty"`
	// WorkDir is where the per-run scratch directory is created. Empty
	// means the system temp directory.
	WorkDir string `json:"work_dir,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a generate run.
type Result struct {
	// Output is the absolute path of the written video.
	Output   string
	Duration float64
	Width    int
	Height   int

	// Scenes lists the rendered top-level scenes in output order.
	Scenes []SceneResult
	// Timeline is the resolved layout of the rendered scenes.
	Timeline []timeline.Entry

	Stats Stats
}

// SceneResult describes one rendered top-level scene.
type SceneResult struct {
	ID       string
	Path     string
	Duration float64
	Cached   bool
}

// Stats contains pipeline execution statistics.
type Stats struct {
	SceneCount   int
	CacheHits    int
	LoadTime     time.Duration
	ResolveTime  time.Duration
	RenderTime   time.Duration
	AssembleTime time.Duration
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Spec == "" {
		return fmt.Errorf("spec is required")
	}
	path, id := spec.SplitTarget(o.Spec)
	o.Spec = path
	if o.SceneID == "" {
		o.SceneID = id
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", o.Workers)
	}
	if o.Workers == 0 {
		o.Workers = defaultWorkers()
	}
	o.Workers = min(o.Workers, MaxWorkers)
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// defaultWorkers is the number of physical cores, since every worker drives
// a multi-threaded encoder.
func defaultWorkers() int {
	n, err := cpu.Counts(false)
	if err != nil || n <= 0 {
		return DefaultWorkers
	}
	return n
}
