package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sceneweaver/pkg/io"
	"github.com/matzehuels/sceneweaver/pkg/pipeline"
	"github.com/matzehuels/sceneweaver/pkg/spec"
	"github.com/matzehuels/sceneweaver/pkg/timeline"
)

// validateCommand creates the validate command: load and resolve a spec
// without rendering anything.
func (c *CLI) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate SPEC[:SCENE_ID]",
		Short: "Check a spec and resolve its scene durations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, entries, err := c.resolveTimeline(cmd, args[0])
			if err != nil {
				return err
			}

			total := 0.0
			for _, e := range entries {
				if e.Depth == 0 {
					total = max(total, e.End())
				}
			}
			printSuccess("%s is valid", v.Path)
			printKeyValue("Scenes", fmt.Sprintf("%d", countTop(entries)))
			printKeyValue("Duration", formatSeconds(total))
			printKeyValue("Resolution", fmt.Sprintf("%dx%d @ %d fps", v.Settings.Width, v.Settings.Height, v.Settings.FPS))
			out, err := pipeline.OutputPath(v, "")
			if err == nil {
				printKeyValue("Output", out)
			}
			return nil
		},
	}
}

// timelineCommand creates the timeline command that prints resolved scene
// start times and durations.
func (c *CLI) timelineCommand() *cobra.Command {
	var (
		asJSON bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "timeline SPEC[:SCENE_ID]",
		Short: "Show when each scene starts and how long it plays",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, entries, err := c.resolveTimeline(cmd, args[0])
			if err != nil {
				return err
			}

			if !asJSON && output == "" {
				fmt.Print(renderTimeline(entries))
				return nil
			}

			_, id := spec.SplitTarget(args[0])
			targets, err := pipeline.Targets(v, id)
			if err != nil {
				return err
			}
			doc, err := io.NewDocument(v, targets)
			if err != nil {
				return err
			}
			if output != "" {
				if err := io.ExportJSON(doc, output); err != nil {
					return err
				}
				printSuccess("Timeline exported")
				printFile(output)
				return nil
			}
			return io.WriteJSON(doc, os.Stdout)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the timeline as JSON")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the JSON timeline to a file")

	return cmd
}

// resolveTimeline loads the target with a spinner running, since probing
// media lengths can take a moment.
func (c *CLI) resolveTimeline(cmd *cobra.Command, target string) (*spec.VideoSpec, []timeline.Entry, error) {
	ctx := cmd.Context()
	opts, err := c.pipelineOptions(target)
	if err != nil {
		return nil, nil, err
	}
	runner, err := c.newRunner(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Resolving durations...")
	spinner.Start()
	v, entries, err := runner.Timeline(ctx, opts)
	spinner.Stop()
	if err != nil {
		return nil, nil, err
	}
	return v, entries, nil
}

func countTop(entries []timeline.Entry) int {
	n := 0
	for _, e := range entries {
		if e.Depth == 0 {
			n++
		}
	}
	return n
}
