package assembler

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"basegraph.app/editorial/internal/model"
)

const (
	GuidelinesFile = "EDITORIAL_GUIDELINES.md"
	StyleGuideFile = "style-guide.md"
)

//go:embed rules/*.md
var embeddedRules embed.FS

// RulesSource supplies the static editorial rules section.
type RulesSource interface {
	Rules(ctx context.Context) (string, error)
}

// FSRules reads the guidelines (required) and the style guide (optional) from
// a file system.
type FSRules struct {
	fsys fs.FS
	name string
}

// NewFileRules reads rules from a directory on disk.
func NewFileRules(dir string) *FSRules {
	return &FSRules{fsys: os.DirFS(dir), name: dir}
}

// DefaultRules returns the rules shipped with the binary.
func DefaultRules() *FSRules {
	sub, _ := fs.Sub(embeddedRules, "rules")
	return &FSRules{fsys: sub, name: "embedded"}
}

func (r *FSRules) Rules(_ context.Context) (string, error) {
	guidelines, err := fs.ReadFile(r.fsys, GuidelinesFile)
	if err != nil {
		return "", &model.MissingRequiredContextError{
			Name: filepath.Join(r.name, GuidelinesFile),
			Err:  err,
		}
	}
	if strings.TrimSpace(string(guidelines)) == "" {
		return "", &model.MissingRequiredContextError{Name: filepath.Join(r.name, GuidelinesFile)}
	}

	parts := []string{strings.TrimSpace(string(guidelines))}

	style, err := fs.ReadFile(r.fsys, StyleGuideFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return "", fmt.Errorf("reading %s: %w", StyleGuideFile, err)
	case strings.TrimSpace(string(style)) != "":
		parts = append(parts, strings.TrimSpace(string(style)))
	}
	return strings.Join(parts, "\n\n"), nil
}

// StaticRules is a fixed rules text.
type StaticRules string

func (s StaticRules) Rules(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", &model.MissingRequiredContextError{Name: GuidelinesFile}
	}
	return string(s), nil
}
