package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"basegraph.app/editorial/internal/engine"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/phase"
)

func signalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signals [text]",
		Short: "Show the phase signals, discovery skip and emotional state of an author comment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			}
			threadLabels, _ := cmd.Flags().GetStringSlice("label")
			projectLabels, _ := cmd.Flags().GetStringSlice("project-label")

			content := model.ThreadContent{ThreadLabels: threadLabels, ProjectLabels: projectLabels}
			ev := model.Event{Type: model.EventTypeCommentCreated, Text: text}
			project, thread := engine.EventSignals(ev, content, engine.AuthorText(ev, content), phase.Thresholds{})

			out := cmd.OutOrStdout()
			printSignals(out, "Project signals", project)
			printSignals(out, "Thread signals", thread)

			fmt.Fprintf(out, "\nSkip discovery: %t\n", phase.ShouldSkipDiscovery(text, threadLabels))
			if state, ok := phase.DetectEmotionalState(text); ok {
				fmt.Fprintf(out, "Emotional state: %s (%s)\n", state, state.Approach())
			} else {
				fmt.Fprintln(out, "Emotional state: none detected")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceP("label", "l", nil, "Thread labels")
	cmd.Flags().StringSliceP("project-label", "p", nil, "Project labels")

	return cmd
}

func printSignals(w io.Writer, title string, signals []model.Signal) {
	fmt.Fprintf(w, "%s\n%s\n", title, strings.Repeat("=", len(title)))
	if len(signals) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, s := range signals {
		fmt.Fprintf(w, "  #%d %-8s %-20s %s\n", s.Seq, s.Kind, s.Value, s.Rationale)
	}
}
