package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/pipeline"
)

// generateCommand creates the generate command for rendering a spec to video.
func (c *CLI) generateCommand() *cobra.Command {
	var (
		output  string
		force   bool
		noCache bool
		pick    bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "generate SPEC[:SCENE_ID]",
		Short: "Render a video spec to a video file",
		Long: `Render a video spec to a video file.

Append :SCENE_ID to the spec path to render a single top-level scene, or use
--pick to choose one interactively. Scenes with a cache policy are reused from
the cache unless --force or --no-cache is given.`,
		Example: `  sceneweaver generate video.yaml
  sceneweaver generate video.yaml:intro -o intro.mp4
  sceneweaver generate video.yaml --pick`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := c.pipelineOptions(args[0])
			if err != nil {
				return err
			}
			opts.Force = force
			opts.NoCache = noCache
			if cmd.Flags().Changed("workers") {
				opts.Workers = workers
			}
			if output != "" {
				if err := errors.ValidateOutputPath(output); err != nil {
					return err
				}
				opts.Output = output
			}

			runner, err := c.newRunner(ctx, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			if pick {
				id, err := c.pickScene(ctx, runner, opts)
				if err != nil {
					return err
				}
				if id == "" {
					printInfo("No scene selected")
					return nil
				}
				opts.SceneID = id
			}

			prog := newProgress(c.Logger)
			result, err := runner.Generate(ctx, opts)
			if err != nil {
				return err
			}
			prog.done("Rendered video")
			printGenerateResult(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: output_file from the spec)")
	cmd.Flags().BoolVar(&force, "force", false, "re-render cached scenes and refresh their cache entries")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "render without reading or writing the cache")
	cmd.Flags().BoolVar(&pick, "pick", false, "choose a top-level scene interactively")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "scenes rendered in parallel (default: CPU cores)")

	return cmd
}

// pickScene shows the top-level scenes of the spec and returns the chosen
// id, or "" when the user quits.
func (c *CLI) pickScene(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (string, error) {
	opts.SceneID = ""
	_, entries, err := runner.Timeline(ctx, opts)
	if err != nil {
		return "", err
	}
	model := NewSceneListModel(entries)
	if len(model.Scenes) == 0 {
		return "", fmt.Errorf("spec has no scenes")
	}

	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil {
		return "", fmt.Errorf("scene picker: %w", err)
	}
	if m, ok := final.(SceneListModel); ok && m.Selected != nil {
		return m.Selected.ID, nil
	}
	return "", nil
}

func printGenerateResult(r *pipeline.Result) {
	printSuccess("Generated %s", StyleHighlight.Render(formatSeconds(r.Duration)))
	printFile(r.Output)
	for _, s := range r.Scenes {
		printSceneLine(s.ID, s.Duration, s.Cached)
	}
	printRunStats(r.Stats)
}
