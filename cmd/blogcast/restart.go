package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/blogcast/internal/types"
)

var restartCmd = &cobra.Command{
	Use:   "restart <pipeline-id> <state>",
	Short: "Roll a pipeline back to an earlier state",
	Long:  "Rolls the pipeline back to a state it has already visited, discarding downstream stage data and clearing any error. Rolling back to a generating state keeps the recorded provider job so it can be resumed.",
	Args:  cobra.ExactArgs(2),
	RunE:  runRestart,
}

func init() {
	rootCmd.AddCommand(restartCmd)
}

func runRestart(_ *cobra.Command, args []string) error {
	id := args[0]
	target := types.State(strings.ToUpper(args[1]))

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	pc, err := a.orchestrator.RestartFromState(ctx, id, target)
	if err != nil {
		return err
	}

	fmt.Printf("Rolled back pipeline %s\n", id)
	fmt.Printf("  State: %s\n", pc.CurrentState)
	printNextActions(ctx, a, id)
	return nil
}
