package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sceneweaver/pkg/pipeline"
	"github.com/matzehuels/sceneweaver/pkg/render/nodelink"
)

// graphCommand creates the graph command that draws the scene tree.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "graph SPEC[:SCENE_ID]",
		Short: "Draw the scene tree as an SVG or DOT diagram",
		Long: `Draw the scene tree with Graphviz.

The format follows the output extension: .svg renders the diagram, .dot writes
the Graphviz source. Without -o the DOT source is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, _, err := c.resolveTimeline(cmd, args[0])
			if err != nil {
				return err
			}
			opts, err := c.pipelineOptions(args[0])
			if err != nil {
				return err
			}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			targets, err := pipeline.Targets(v, opts.SceneID)
			if err != nil {
				return err
			}

			dot, err := nodelink.ToDOT(targets, nodelink.Options{Detailed: detailed})
			if err != nil {
				return err
			}
			if output == "" {
				fmt.Print(dot)
				return nil
			}

			data := []byte(dot)
			switch ext := strings.ToLower(filepath.Ext(output)); ext {
			case ".dot", ".gv":
			case ".svg":
				spinner := newSpinnerWithContext(ctx, "Rendering diagram...")
				spinner.Start()
				data, err = nodelink.RenderSVG(ctx, dot)
				if err != nil {
					spinner.StopWithError("Graphviz rendering failed")
					return err
				}
				spinner.Stop()
			default:
				return fmt.Errorf("unsupported graph format %q (use .svg or .dot)", ext)
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			printSuccess("Scene graph written")
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.svg or .dot)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include effects, audio and cache policy in labels")

	return cmd
}
