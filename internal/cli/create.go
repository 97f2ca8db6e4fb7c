package cli

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sceneweaver/pkg/errors"
)

//go:embed example.yaml
var exampleSpec []byte

// createCommand creates the create command that writes an example spec.
func (c *CLI) createCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create FILE",
		Short: "Write an example spec to start from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := writeExample(path); err != nil {
				return err
			}
			printSuccess("Created example spec")
			printFile(path)
			printNewline()
			printNextStep("Render it with", fmt.Sprintf("%s generate %s", appName, path))
			return nil
		},
	}
}

// writeExample writes the example spec to path. An existing file is never
// overwritten.
func writeExample(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return errors.New(errors.ErrCodeValidation, "file already exists at %s", path)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(exampleSpec); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
