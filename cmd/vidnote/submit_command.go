package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidnote/internal/api"
	"vidnote/internal/queue"
	"vidnote/internal/textutil"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var styleFlag string
	var modelFlag string
	var extrasFlag string
	var syncFlag bool
	var waitFlag bool
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "submit URL",
		Short: "Submit a video URL or local file for note generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			req := api.SubmitRequest{
				VideoURL: args[0],
				Style:    styleFlag,
				Model:    modelFlag,
				Extras:   extrasFlag,
			}

			if syncFlag {
				client.WithTimeout(time.Hour)
				resp, err := client.SubmitSync(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeResult(cmd, resp, outputFlag)
			}

			accepted, err := client.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			if accepted.Cached {
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s already completed\n", accepted.TaskID)
				if outputFlag != "" || waitFlag {
					resp, err := client.Result(cmd.Context(), accepted.TaskID)
					if err != nil {
						return err
					}
					return writeResult(cmd, resp, outputFlag)
				}
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Task %s queued (%s)\n", accepted.TaskID, accepted.Status)
			if !waitFlag {
				return nil
			}
			resp, err := pollUntilDone(cmd, client, accepted.TaskID)
			if err != nil {
				return err
			}
			return writeResult(cmd, resp, outputFlag)
		},
	}

	cmd.Flags().StringVar(&styleFlag, "style", "", "Note style (minimal, detailed, academic, tutorial, meeting, xiaohongshu)")
	cmd.Flags().StringVar(&modelFlag, "model", "", "Override the summarizer model")
	cmd.Flags().StringVar(&extrasFlag, "extras", "", "Additional instructions for the summarizer")
	cmd.Flags().BoolVar(&syncFlag, "sync", false, "Process inline and print the finished note")
	cmd.Flags().BoolVar(&waitFlag, "wait", false, "Poll until the task finishes")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write the note markdown to a file or directory")

	return cmd
}

func pollUntilDone(cmd *cobra.Command, client *api.Client, taskID string) (*api.ResultResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastStatus := ""
	for {
		select {
		case <-cmd.Context().Done():
			return nil, cmd.Context().Err()
		case <-ticker.C:
		}

		view, err := client.Task(cmd.Context(), taskID)
		if err != nil {
			return nil, err
		}
		if view.Status != lastStatus {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", view.Status)
			lastStatus = view.Status
		}
		switch queue.Status(view.Status) {
		case queue.StatusCompleted:
			return client.Result(cmd.Context(), taskID)
		case queue.StatusFailed:
			return nil, fmt.Errorf("task failed at %s: %s", view.Stage, view.ErrorMessage)
		case queue.StatusCancelled:
			return nil, fmt.Errorf("task cancelled")
		}
	}
}

func writeResult(cmd *cobra.Command, resp *api.ResultResponse, outputPath string) error {
	for _, warning := range resp.Task.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
	}
	if outputPath = strings.TrimSpace(outputPath); outputPath != "" {
		// A directory target names the file after the note title.
		if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
			name := textutil.SanitizeFileName(resp.Result.Title)
			if name == "" {
				name = resp.Task.TaskID
			}
			outputPath = filepath.Join(outputPath, name+".md")
		}
		if err := os.WriteFile(outputPath, []byte(resp.Result.Markdown), 0o644); err != nil {
			return fmt.Errorf("write note: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note written to %s\n", outputPath)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Result.Markdown)
	return nil
}
