package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"basegraph.app/editorial/internal/assembler"
	"basegraph.app/editorial/internal/engine"
	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/memory"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/persona"
	"basegraph.app/editorial/internal/phase"
)

// threadFile is the YAML description of a thread used by preview.
type threadFile struct {
	ProjectID     string   `yaml:"project_id"`
	ThreadID      string   `yaml:"thread_id"`
	Title         string   `yaml:"title"`
	ProjectLabels []string `yaml:"project_labels"`
	ThreadLabels  []string `yaml:"thread_labels"`
	Preferences   string   `yaml:"preferences"`
	Turns         []struct {
		Role   string `yaml:"role"`
		Author string `yaml:"author"`
		Text   string `yaml:"text"`
	} `yaml:"turns"`
	Event struct {
		Type                 string `yaml:"type"`
		Author               string `yaml:"author"`
		Text                 string `yaml:"text"`
		FragmentIncorporated bool   `yaml:"fragment_incorporated"`
		WordCount            int    `yaml:"word_count"`
		ChapterCount         int    `yaml:"chapter_count"`
	} `yaml:"event"`
}

type previewOptions struct {
	rulesDir    string
	persona     string
	recentTurns int
	window      int
	maxOutput   int
}

func previewCmd() *cobra.Command {
	var (
		file   string
		asJSON bool
		opts   previewOptions
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Assemble the editor context for a thread described in YAML, without calling any model",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading thread file: %w", err)
			}
			var tf threadFile
			if err := yaml.Unmarshal(data, &tf); err != nil {
				return fmt.Errorf("parsing thread file: %w", err)
			}

			bundle, err := preview(cmd.Context(), tf, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(bundle)
			}
			printBundle(out, bundle)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML thread file")
	cmd.Flags().StringVar(&opts.rulesDir, "rules", "", "Directory holding EDITORIAL_GUIDELINES.md (built-in rules when empty)")
	cmd.Flags().StringVar(&opts.persona, "persona", "", "Environment default persona")
	cmd.Flags().IntVar(&opts.recentTurns, "recent", 3, "Turns kept verbatim")
	cmd.Flags().IntVar(&opts.window, "window", 0, "Model context window in tokens (default when 0)")
	cmd.Flags().IntVar(&opts.maxOutput, "max-output", 0, "Tokens reserved for the reply (default when 0)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the bundle as JSON")

	return cmd
}

// preview runs the same signal, phase, persona and assembly steps as the
// worker for a single event, starting from a thread with no stored state.
// Older turns are shown verbatim instead of being summarized.
func preview(ctx context.Context, tf threadFile, opts previewOptions) (model.ContextBundle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tf.ProjectID == "" || tf.ThreadID == "" {
		return model.ContextBundle{}, fmt.Errorf("project_id and thread_id are required")
	}

	catalog, err := persona.DefaultCatalog()
	if err != nil {
		return model.ContextBundle{}, err
	}

	now := time.Now().UTC()
	content := model.ThreadContent{
		ProjectID:     tf.ProjectID,
		ThreadID:      tf.ThreadID,
		Title:         tf.Title,
		ProjectLabels: tf.ProjectLabels,
		ThreadLabels:  tf.ThreadLabels,
	}
	for i, t := range tf.Turns {
		role := model.Role(strings.ToLower(t.Role))
		if role == "" {
			role = model.RoleAuthor
		}
		content.Turns = append(content.Turns, model.ConversationTurn{
			Index: i, Role: role, Author: t.Author, Text: t.Text, CreatedAt: now,
		})
	}

	evType := model.EventType(tf.Event.Type)
	if evType == "" {
		evType = model.EventTypeCommentCreated
	}
	ev := model.Event{
		Type:                 evType,
		ProjectID:            tf.ProjectID,
		ThreadID:             tf.ThreadID,
		Author:               tf.Event.Author,
		Text:                 tf.Event.Text,
		FragmentIncorporated: tf.Event.FragmentIncorporated,
		WordCount:            tf.Event.WordCount,
		ChapterCount:         tf.Event.ChapterCount,
		OccurredAt:           now,
	}
	if ev.Type != model.EventTypeThreadClosed && strings.TrimSpace(ev.Text) != "" {
		content.Turns = append(content.Turns, model.ConversationTurn{
			Index: len(content.Turns), Role: model.RoleAuthor, Author: ev.Author, Text: ev.Text, CreatedAt: now,
		})
	}

	snapshot := model.KnowledgeSnapshot{ProjectID: tf.ProjectID}
	if strings.TrimSpace(tf.Preferences) != "" {
		prefs, err := knowledge.ParsePreferences(tf.ProjectID, []byte(tf.Preferences))
		if err != nil {
			return model.ContextBundle{}, err
		}
		snapshot.Preferences = prefs
	}

	text := engine.AuthorText(ev, content)
	projectSignals, threadSignals := engine.EventSignals(ev, content, text, phase.Thresholds{})

	project := phase.ClassifyProject(phase.ProjectInput{
		ProjectID: tf.ProjectID,
		Signals:   projectSignals,
		Now:       now,
	})
	thread, err := phase.ClassifyThread(phase.ThreadInput{
		ThreadID:  tf.ThreadID,
		ProjectID: tf.ProjectID,
		Signals:   threadSignals,
		Turns:     content.Turns,
		Now:       now,
	}, nil)
	if err != nil {
		return model.ContextBundle{}, err
	}

	res, err := persona.NewResolver(catalog, 1).Resolve(persona.ResolveInput{
		Command:       text,
		ThreadLabels:  tf.ThreadLabels,
		EnvDefault:    opts.persona,
		StoredDefault: snapshot.Preferences.DefaultPersona,
	})
	if err != nil {
		return model.ContextBundle{}, err
	}

	var rules assembler.RulesSource = assembler.DefaultRules()
	if opts.rulesDir != "" {
		rules = assembler.NewFileRules(opts.rulesDir)
	}

	view := memory.View{Recent: content.Turns}
	if k := opts.recentTurns; k > 0 && len(content.Turns) > k {
		view.Recent = content.Turns[len(content.Turns)-k:]
	}

	task, body := res.Request, ""
	if ev.Type == model.EventTypeFragmentSubmitted {
		task, body = "Review the submitted fragment.", ev.Text
	}
	emotion, _ := phase.DetectEmotionalState(res.Request)

	a := assembler.New(catalog, rules, memory.Budget{ContextWindow: opts.window, MaxOutput: opts.maxOutput})
	return a.Assemble(ctx, assembler.Input{
		ProjectID: tf.ProjectID,
		ThreadID:  tf.ThreadID,
		Persona:   res,
		Snapshot:  snapshot,
		Project:   project,
		Thread:    thread,
		Memory:    view,
		Emotion:   emotion,
		Task:      task,
		Content:   body,
	})
}

func printBundle(w io.Writer, b model.ContextBundle) {
	fmt.Fprintf(w, "Project %s, thread %s\n", b.ProjectID, b.ThreadID)
	fmt.Fprintf(w, "Persona %s (intensity %+d), knowledge %s\n", b.PersonaID, b.IntensityDelta, b.SnapshotVersion)
	for _, s := range b.Sections {
		marker := ""
		if s.Cacheable {
			marker = " [cacheable]"
		}
		fmt.Fprintf(w, "\n----- %s%s -----\n%s\n", s.Name, marker, s.Content)
	}
	fmt.Fprintf(w, "\nBudget: %+v\n", b.Budget)
}
