package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipelines, most recently updated first",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	summaries, err := a.orchestrator.Summaries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pipelines: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Println("No pipelines.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tTITLE\tUPDATED")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			s.ID, s.CurrentState, s.Title, s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
