package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/blogcast/internal/content"
	"github.com/jonathan/blogcast/internal/types"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new pipeline from a blog post",
	Long:  "Starts a new pipeline from a local markdown or HTML file, or from a live blog URL, and prints the pipeline id.",
	RunE:  runStart,
}

var (
	startFile string
	startURL  string
)

func init() {
	startCmd.Flags().StringVarP(&startFile, "file", "f", "", "Path to a markdown or HTML blog file")
	startCmd.Flags().StringVarP(&startURL, "url", "u", "", "URL of the blog post to fetch")

	rootCmd.AddCommand(startCmd)
}

func runStart(_ *cobra.Command, _ []string) error {
	if (startFile == "") == (startURL == "") {
		return fmt.Errorf("exactly one of --file or --url is required")
	}

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var item *types.BlogItem
	if startFile != "" {
		item, err = content.LoadFile(startFile)
	} else {
		item, err = content.LoadURL(ctx, startURL)
	}
	if err != nil {
		return err
	}

	pc, err := a.orchestrator.Start(ctx, item)
	if err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	fmt.Printf("Started pipeline %s\n", pc.ID)
	fmt.Printf("  Title: %s\n", item.Title)
	fmt.Printf("  State: %s\n", pc.CurrentState)
	printNextActions(ctx, a, pc.ID)
	return nil
}
