package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidnote/internal/notes"
	"vidnote/internal/textutil"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status TASK_ID",
		Short: "Show the current state of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := client.Task(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task:    %s\n", view.TaskID)
			fmt.Fprintf(out, "URL:     %s\n", view.VideoURL)
			fmt.Fprintf(out, "Style:   %s\n", view.Style)
			fmt.Fprintf(out, "Status:  %s\n", view.Status)
			if view.Stage != "" {
				fmt.Fprintf(out, "Stage:   %s\n", view.Stage)
			}
			if view.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:   [%s] %s\n", view.ErrorKind, view.ErrorMessage)
			}
			for _, warning := range view.Warnings {
				fmt.Fprintf(out, "Warning: %s\n", warning)
			}
			return nil
		},
	}
	return cmd
}

func newResultCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "result TASK_ID",
		Short: "Print the finished note for a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Result(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd, resp, outputFlag)
		},
	}
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write the note markdown to a file")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			tasks, err := client.Tasks(cmd.Context(), statusFlags...)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
				return nil
			}

			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				detail := task.ErrorMessage
				if detail == "" && task.Stage != "" {
					detail = task.Stage
				}
				rows = append(rows, []string{
					task.TaskID,
					task.Status,
					task.Style,
					textutil.Truncate(task.VideoURL, 60),
					textutil.Truncate(detail, 40),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"TASK", "STATUS", "STYLE", "SOURCE", "DETAIL"},
				rows,
				nil,
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel TASK_ID",
		Short: "Request cooperative cancellation of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !resp.Cancelled {
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s is not cancellable\n", resp.TaskID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for %s\n", resp.TaskID)
			return nil
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [TASK_ID...]",
		Short: "Requeue failed tasks (all of them without arguments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			retried, err := client.Retry(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d task(s)\n", retried)
			return nil
		},
	}
}

func newStylesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List the available note styles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				// Styles are static; fall back to the local definitions when
				// the daemon is unreachable.
				return printLocalStyles(cmd)
			}
			styles, err := client.Styles(cmd.Context())
			if err != nil {
				return printLocalStyles(cmd)
			}

			rows := make([][]string, 0, len(styles))
			for _, style := range styles {
				rows = append(rows, []string{style.Name, style.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"STYLE", "DESCRIPTION"}, rows, nil))
			return nil
		},
	}
}

func printLocalStyles(cmd *cobra.Command) error {
	rows := make([][]string, 0, len(notes.AllStyles()))
	for _, style := range notes.AllStyles() {
		rows = append(rows, []string{string(style), style.Description()})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"STYLE", "DESCRIPTION"}, rows, nil))
	return nil
}
