package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func tocCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "toc <file>",
		Short: "Print the derived table of contents of a book.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBook(args[0])
			if err != nil {
				return err
			}
			for _, entry := range b.TableOfContents {
				fmt.Fprintln(cmd.OutOrStdout(), entry)
			}
			return nil
		},
	}
	return &cmd
}
