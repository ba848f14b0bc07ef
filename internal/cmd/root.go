package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lessonforge/lessonforge/internal/log"
)

var verbose bool

func Root() *cobra.Command {
	cmd := cobra.Command{
		Use:           "lessonforge",
		Short:         "Edit, version and convert AI-generated course books",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.Set()
			}
		},
	}

	pflags := cmd.PersistentFlags()
	pflags.BoolVar(&verbose, "verbose", false, "Enable debug logging to stderr.")

	cmd.AddCommand(convertCmd())
	cmd.AddCommand(fmtCmd())
	cmd.AddCommand(imagesCmd())
	cmd.AddCommand(tocCmd())
	cmd.AddCommand(versionsCmd())

	return &cmd
}
