package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/session-analysis/orchestrator"
)

func newAnalyzeCmd() *cobra.Command {
	var direct bool
	cmd := &cobra.Command{
		Use:   "analyze <metadata-url|media-url|file>",
		Short: "Analyse one session and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, log, err := loadConfig()
			if err != nil {
				return err
			}
			models := newModels(conf)
			defer models.Close()

			pipe := orchestrator.NewPipeline(conf, models, orchestrator.WithLogger(log))
			defer pipe.Close()

			ctx := cmd.Context()
			target := args[0]

			var job *orchestrator.MediaJob
			switch {
			case strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://"):
				if direct {
					job = orchestrator.NewDirectJob(target)
				} else {
					job = orchestrator.NewURLJob(target)
				}
			default:
				f, err := os.Open(target)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				job, err = pipe.StageUpload(ctx, filepath.Base(target), "", f)
				f.Close()
				if err != nil {
					return err
				}
			}

			res, err := pipe.Execute(ctx, job)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&direct, "direct", false, "treat a URL argument as the media itself rather than a metadata document")
	return cmd
}
