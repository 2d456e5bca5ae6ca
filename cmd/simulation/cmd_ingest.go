package main

import (
	"os"
	"path/filepath"
	"strings"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"

	"github.com/spf13/cobra"
)

var (
	ingestLesson int
	ingestTitle  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Queue a lesson reference document for ingestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		title := ingestTitle
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}

		var out serverutils.Response[dto.IngestReferenceResponse]
		if err := postJSON("/reference/v1", dto.IngestReferenceRequest{
			LessonIndex: ingestLesson,
			Title:       title,
			Content:     string(content),
		}, &out); err != nil {
			return err
		}
		tutorColor.Printf("queued %s as %s\n", title, out.Data.ReferenceId)
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVarP(&ingestLesson, "lesson", "l", 1, "lesson index")
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "document title (defaults to the file name)")
}
