package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sceneweaver/pkg/pipeline"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for the given shell.

Spec arguments complete to .yaml files, and after a colon to the spec's
top-level scene IDs.

  $ source <(sceneweaver completion bash)
  $ sceneweaver completion zsh > "${fpath[1]}/_sceneweaver"
  $ sceneweaver completion fish > ~/.config/fish/completions/sceneweaver.fish
  PS> sceneweaver completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(os.Stdout, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
}

// completeTarget completes a SPEC[:SCENE_ID] argument.
func (c *CLI) completeTarget(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	path, prefix, ok := strings.Cut(toComplete, ":")
	if !ok {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	}
	return c.sceneIDs(path, prefix), cobra.ShellCompDirectiveNoFileComp
}

// sceneIDs lists "path:id" for the top-level scenes of path whose ID starts
// with prefix. Errors yield no suggestions.
func (c *CLI) sceneIDs(path, prefix string) []string {
	var templatePaths []string
	if cfg, err := c.loadConfig(); err == nil {
		templatePaths = cfg.Templates
	}
	v, err := pipeline.LoadSpec(path, templatePaths)
	if err != nil {
		return nil
	}
	var out []string
	for _, s := range v.Scenes {
		if id := s.Common().ID; strings.HasPrefix(id, prefix) {
			out = append(out, path+":"+id)
		}
	}
	return out
}
