package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/lessonforge/lessonforge/internal/document"
)

func fmtCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "fmt <file>",
		Short: "Normalize a lesson Markdown file through a parse and serialize round trip.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}

			tree := document.Parse(string(data))
			result, err := document.Serialize(tree, document.SerializeOptions{})
			if err != nil {
				return errors.Wrap(err, "failed to serialize tree")
			}

			_, err = cmd.OutOrStdout().Write([]byte(result))
			return errors.Wrap(err, "failed to write result")
		},
	}
	return &cmd
}
