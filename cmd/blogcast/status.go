package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/blogcast/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <pipeline-id>",
	Short: "Show a pipeline's state, artifacts and next actions",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	pc, err := a.orchestrator.GetContext(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Pipeline %s\n", pc.ID)
	fmt.Printf("  State:   %s\n", pc.CurrentState)
	if pc.Item != nil {
		fmt.Printf("  Title:   %s\n", pc.Item.Title)
	}
	if pc.Script != nil {
		fmt.Printf("  Script:  %d words, ~%.0fs", pc.Script.WordCount(), pc.Script.EstimatedDuration)
		if pc.Script.Templated {
			fmt.Print(" (templated)")
		}
		if pc.Script.ApprovedAt != nil {
			fmt.Printf(", approved %s", pc.Script.ApprovedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
	if pc.AvatarVideo != nil {
		fmt.Printf("  Avatar:  job %s (%s)", pc.AvatarVideo.JobID, pc.AvatarVideo.Status)
		if pc.AvatarVideo.Reused {
			fmt.Print(", reused")
		}
		if pc.AvatarVideo.ResultURL != "" {
			fmt.Printf(", %s", pc.AvatarVideo.ResultURL)
		}
		fmt.Println()
	}
	if pc.Composed != nil {
		fmt.Printf("  Video:   job %s (%s)", pc.Composed.JobID, pc.Composed.Status)
		if pc.Composed.Simulated {
			fmt.Print(", simulated")
		}
		if pc.Composed.ResultURL != "" {
			fmt.Printf(", %s", pc.Composed.ResultURL)
		}
		fmt.Println()
	}
	if pc.CurrentState == types.StateError && pc.Error != nil {
		fmt.Printf("  Error:   %s (during %s in %s)\n",
			pc.Error.Message, pc.Error.Action, pc.Error.State)
	}
	fmt.Printf("  Updated: %s\n", pc.Metadata.UpdatedAt.Format("2006-01-02 15:04:05"))
	printNextActions(ctx, a, pc.ID)
	return nil
}
