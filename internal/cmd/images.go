package cmd

import (
	"net/http"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lessonforge/lessonforge/internal/log"
	"github.com/lessonforge/lessonforge/internal/storage"
)

func imagesCmd() *cobra.Command {
	var documentID string

	cmd := cobra.Command{
		Use:   "images",
		Short: "Manage a document's images on the blob store.",
	}

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&documentID, "document", "", "Document ID namespacing the image set.")
	_ = cmd.MarkPersistentFlagRequired("document")

	cmd.AddCommand(imagesUploadCmd(&documentID))

	return &cmd
}

func imagesUploadCmd(documentID *string) *cobra.Command {
	cmd := cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image and print its canonical and displayable references.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			blob, err := storage.NewGCSStore(cmd.Context(), log.Get())
			if err != nil {
				return err
			}
			resolver := storage.NewGCSResolver(blob, *documentID)

			canonical, err := resolver.ToCanonical(cmd.Context(), "", data, http.DetectContentType(data))
			if err != nil {
				return err
			}
			display, err := resolver.ToDisplayable(cmd.Context(), canonical)
			if err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Uploaded %s\n", canonical)
			color.New(color.Faint).Fprintf(cmd.OutOrStdout(), "%s\n", display)
			return nil
		},
	}

	return &cmd
}
