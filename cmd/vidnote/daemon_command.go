package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon utilities",
	}
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	return daemonCmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon runtime status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:  %s\n", yesNo(status.Running))
			fmt.Fprintf(out, "PID:      %d\n", status.PID)
			fmt.Fprintf(out, "Registry: %s\n", status.RegistryPath)
			fmt.Fprintf(out, "Lock:     %s\n", status.LockFilePath)

			if len(status.Queue) > 0 {
				rows := make([][]string, 0, len(status.Queue))
				for _, key := range []string{"pending", "processing", "completed", "failed", "cancelled", "total"} {
					rows = append(rows, []string{key, strconv.Itoa(status.Queue[key])})
				}
				fmt.Fprintln(out, renderTable([]string{"QUEUE", "COUNT"}, rows, []columnAlignment{alignLeft, alignRight}))
			}

			if len(status.Stages) > 0 {
				rows := make([][]string, 0, len(status.Stages))
				for _, stage := range status.Stages {
					ready := "ready"
					if !stage.Ready {
						ready = stage.Detail
						if ready == "" {
							ready = "unavailable"
						}
					}
					rows = append(rows, []string{stage.Name, ready})
				}
				fmt.Fprintln(out, renderTable([]string{"STAGE", "STATE"}, rows, nil))
			}

			for _, dep := range status.Dependencies {
				if !dep.Available {
					fmt.Fprintf(out, "Missing dependency: %s (%s)\n", dep.Name, dep.Detail)
				}
			}
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
