package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/blogcast/internal/stages"
	"github.com/jonathan/blogcast/internal/types"
)

var actionCmd = &cobra.Command{
	Use:   "action <pipeline-id> <action>",
	Short: "Apply an action to a pipeline",
	Long:  "Applies a pipeline action such as GENERATE_SCRIPT, APPROVE_SCRIPT or GENERATE_AVATAR. Run 'blogcast status' to see which actions are currently legal.",
	Args:  cobra.ExactArgs(2),
	RunE:  runAction,
}

var (
	actionText        string
	actionAspectRatio string
	actionCharacter   string
	actionVoice       string
)

func init() {
	actionCmd.Flags().StringVar(&actionText, "text", "", "Replacement script text (EDIT_SCRIPT)")
	actionCmd.Flags().StringVar(&actionAspectRatio, "aspect-ratio", "", "Aspect ratio, e.g. 16:9 or 9:16 (APPROVE_SCRIPT)")
	actionCmd.Flags().StringVar(&actionCharacter, "character", "", "Avatar character override")
	actionCmd.Flags().StringVar(&actionVoice, "voice", "", "Avatar voice override")

	rootCmd.AddCommand(actionCmd)
}

func runAction(_ *cobra.Command, args []string) error {
	id := args[0]
	action := types.Action(strings.ToUpper(args[1]))

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	payload := stages.Payload{
		ScriptText:  actionText,
		AspectRatio: actionAspectRatio,
		Character:   actionCharacter,
		Voice:       actionVoice,
	}

	pc, err := a.orchestrator.ExecuteAction(ctx, id, action, payload)
	if err != nil {
		if pc != nil && pc.CurrentState == types.StateError {
			// The failure is recorded in the pipeline; tell the user how to
			// get going again.
			fmt.Printf("Pipeline %s is now in ERROR: %s\n", id, pc.Error.Message)
			fmt.Printf("Recover with: blogcast restart %s <state>\n", id)
		}
		var ite *types.InvalidTransitionError
		if errors.As(err, &ite) {
			fmt.Printf("Action %s is not legal right now.\n", action)
			printNextActions(ctx, a, id)
		}
		return err
	}

	fmt.Printf("Applied %s\n", action)
	fmt.Printf("  State: %s\n", pc.CurrentState)
	printNextActions(ctx, a, id)
	return nil
}

func printNextActions(ctx context.Context, a *app, id string) {
	actions, err := a.orchestrator.ValidActions(ctx, id)
	if err != nil || len(actions) == 0 {
		return
	}
	names := make([]string, len(actions))
	for i, act := range actions {
		names[i] = string(act)
	}
	fmt.Printf("  Next:  %s\n", strings.Join(names, ", "))
}
