package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <pipeline-id>",
	Short: "Delete a pipeline and its persisted state",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.orchestrator.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}
	fmt.Printf("Deleted pipeline %s\n", args[0])
	return nil
}
