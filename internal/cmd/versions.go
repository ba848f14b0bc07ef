package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/lessonforge/lessonforge/internal/log"
	"github.com/lessonforge/lessonforge/internal/storage"
	"github.com/lessonforge/lessonforge/internal/version"
)

func versionsCmd() *cobra.Command {
	var documentID string

	cmd := cobra.Command{
		Use:   "versions",
		Short: "Manage named snapshots of a book on the blob store.",
	}

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&documentID, "document", "", "Document ID namespacing the version set.")
	_ = cmd.MarkPersistentFlagRequired("document")

	cmd.AddCommand(versionsListCmd(&documentID))
	cmd.AddCommand(versionsSaveCmd(&documentID))
	cmd.AddCommand(versionsDeleteCmd(&documentID))

	return &cmd
}

// versionStore builds the store over the document's working copy, which
// serves as the original pseudo-version for this invocation.
func versionStore(cmd *cobra.Command, documentID, workingCopy string) (*version.Store, error) {
	blob, err := storage.NewGCSStore(cmd.Context(), log.Get())
	if err != nil {
		return nil, err
	}
	original, err := loadBook(workingCopy)
	if err != nil {
		return nil, err
	}
	return version.New(blob, documentID, original, log.Get()), nil
}

func versionsListCmd(documentID *string) *cobra.Command {
	var workingCopy string

	cmd := cobra.Command{
		Use:   "list",
		Short: "List versions, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := versionStore(cmd, *documentID, workingCopy)
			if err != nil {
				return err
			}
			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workingCopy, "file", "book.md", "Path of the working copy.")

	return &cmd
}

func versionsSaveCmd(documentID *string) *cobra.Command {
	var (
		workingCopy string
		overwrite   bool
	)

	cmd := cobra.Command{
		Use:   "save <name>",
		Short: "Save the working copy as a named snapshot.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			store, err := versionStore(cmd, *documentID, workingCopy)
			if err != nil {
				return err
			}
			b, err := loadBook(workingCopy)
			if err != nil {
				return err
			}

			rec, err := store.Save(cmd.Context(), b, name)
			if errors.Is(err, version.ErrNameExists) {
				if !overwrite && !confirm(cmd, fmt.Sprintf("Version %q already exists. Overwrite?", name)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted; version list unchanged.")
					return nil
				}
				rec, err = store.SaveOverwrite(cmd.Context(), b, name)
			}
			if err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Saved version %q (%s)\n", rec.Name, rec.StorageKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&workingCopy, "file", "book.md", "Path of the working copy.")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing version of the same name without prompting.")

	return &cmd
}

func versionsDeleteCmd(documentID *string) *cobra.Command {
	var workingCopy string

	cmd := cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a named snapshot.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			store, err := versionStore(cmd, *documentID, workingCopy)
			if err != nil {
				return err
			}
			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, rec := range records {
				if rec.Name == name {
					if err := store.Delete(cmd.Context(), rec); err != nil {
						return err
					}
					color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "Deleted version %q\n", name)
					return nil
				}
			}
			return errors.Errorf("no version named %q", name)
		},
	}

	cmd.Flags().StringVar(&workingCopy, "file", "book.md", "Path of the working copy.")

	return &cmd
}

func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	reader := bufio.NewReader(cmd.InOrStdin())
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
