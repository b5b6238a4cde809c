package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit <pipeline-id>",
	Short: "Print a pipeline's transition history",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAudit(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	trail, err := a.orchestrator.AuditTrail(ctx, args[0])
	if err != nil {
		return err
	}
	if len(trail) == 0 {
		fmt.Println("No transitions yet.")
		return nil
	}
	for _, line := range trail {
		fmt.Println(line)
	}
	return nil
}
