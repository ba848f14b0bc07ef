package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/lessonforge/lessonforge/internal/book"
)

func convertCmd() *cobra.Command {
	var to string

	cmd := cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a book between its Markdown and JSON persisted forms.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBook(args[0])
			if err != nil {
				return err
			}

			var result []byte
			switch to {
			case "json":
				result, err = book.MarshalJSON(b)
			case "markdown", "md":
				result, err = book.MarshalMarkdown(b)
			default:
				return errors.Errorf("unknown target format %q, expected json or markdown", to)
			}
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(result)
			return errors.Wrap(err, "failed to write result")
		},
	}

	cmd.Flags().StringVar(&to, "to", "json", "Target format: json or markdown.")

	return &cmd
}
