package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"basegraph.app/editorial/common/logger"
	"basegraph.app/editorial/internal/engine"
	"basegraph.app/editorial/internal/model"
)

const (
	threadLabelPrefix  = "phase:"
	projectTopicPrefix = "book:"
	notesPerPage       = 100
)

// GitLab maps book projects to GitLab projects and threads to issues. The
// issue description is the first author turn. Notes by the bot account are
// editor turns.
type GitLab struct {
	client      *gitlab.Client
	botUsername string
}

var (
	_ engine.ThreadSource = (*GitLab)(nil)
	_ engine.Publisher    = (*GitLab)(nil)
)

func NewGitLab(baseURL, token, botUsername string) (*GitLab, error) {
	client, err := newClient(baseURL, token)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &GitLab{client: client, botUsername: botUsername}, nil
}

func newClient(baseURL, token string) (*gitlab.Client, error) {
	if baseURL == "" {
		return gitlab.NewClient(token)
	}
	apiURL := strings.TrimSuffix(baseURL, "/") + "/api/v4"
	return gitlab.NewClient(token, gitlab.WithBaseURL(apiURL))
}

// ThreadID is the engine thread id of an issue: "<project path>#<iid>".
func ThreadID(projectPath string, issueIID int64) string {
	return projectPath + "#" + strconv.FormatInt(issueIID, 10)
}

// ParseThreadID splits a thread id produced by ThreadID.
func ParseThreadID(threadID string) (string, int64, error) {
	i := strings.LastIndex(threadID, "#")
	if i <= 0 || i == len(threadID)-1 {
		return "", 0, fmt.Errorf("thread id %q is not <project>#<iid>", threadID)
	}
	iid, err := strconv.ParseInt(threadID[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("thread id %q: invalid issue iid: %w", threadID, err)
	}
	return threadID[:i], iid, nil
}

func (g *GitLab) Fetch(ctx context.Context, projectID, threadID string) (model.ThreadContent, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "editorial.tracker.gitlab"})

	path, iid, err := ParseThreadID(threadID)
	if err != nil {
		return model.ThreadContent{}, err
	}

	issue, _, err := g.client.Issues.GetIssue(path, iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return model.ThreadContent{}, fmt.Errorf("fetching issue from gitlab: %w", err)
	}

	notes, err := g.listNotes(ctx, path, iid)
	if err != nil {
		return model.ThreadContent{}, err
	}

	project, _, err := g.client.Projects.GetProject(projectID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return model.ThreadContent{}, fmt.Errorf("fetching project from gitlab: %w", err)
	}

	content := model.ThreadContent{
		ProjectID:     projectID,
		ThreadID:      threadID,
		Title:         issue.Title,
		ThreadLabels:  append([]string(nil), issue.Labels...),
		ProjectLabels: append([]string(nil), project.Topics...),
	}

	if strings.TrimSpace(issue.Description) != "" {
		var author string
		if issue.Author != nil {
			author = issue.Author.Username
		}
		var created time.Time
		if issue.CreatedAt != nil {
			created = *issue.CreatedAt
		}
		content.Turns = append(content.Turns, g.turn(author, issue.Description, created))
	}
	for _, n := range notes {
		content.Turns = append(content.Turns, g.turn(n.author, n.body, n.createdAt))
	}
	for i := range content.Turns {
		content.Turns[i].Index = i
	}

	slog.DebugContext(ctx, "thread fetched from gitlab",
		"thread_id", threadID,
		"turns", len(content.Turns),
		"thread_labels", content.ThreadLabels,
		"project_labels", content.ProjectLabels)

	return content, nil
}

func (g *GitLab) turn(author, text string, at time.Time) model.ConversationTurn {
	role := model.RoleAuthor
	if g.botUsername != "" && strings.EqualFold(author, g.botUsername) {
		role = model.RoleEditor
	}
	return model.ConversationTurn{Role: role, Author: author, Text: text, CreatedAt: at}
}

type note struct {
	author    string
	body      string
	createdAt time.Time
}

// listNotes returns the human notes of an issue, oldest first. System notes
// (label changes, state changes) are skipped.
func (g *GitLab) listNotes(ctx context.Context, path string, iid int64) ([]note, error) {
	opts := &gitlab.ListIssueNotesOptions{
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: notesPerPage},
		OrderBy:     gitlab.Ptr("created_at"),
		Sort:        gitlab.Ptr("asc"),
	}

	var out []note
	for {
		page, resp, err := g.client.Notes.ListIssueNotes(path, iid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetching notes from gitlab: %w", err)
		}
		for _, n := range page {
			if n == nil || n.System {
				continue
			}
			author := n.Author.Username
			if author == "" {
				author = fmt.Sprintf("id:%d", n.Author.ID)
			}
			createdAt := n.CreatedAt
			if createdAt == nil {
				createdAt = n.UpdatedAt
			}
			item := note{author: author, body: n.Body}
			if createdAt != nil {
				item.createdAt = *createdAt
			}
			out = append(out, item)
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	slices.SortStableFunc(out, func(a, b note) int {
		return a.createdAt.Compare(b.createdAt)
	})
	return out, nil
}

// Publish posts the reply as an issue note, then moves the issue to the new
// phase:* label and the project to the new book:* topic.
func (g *GitLab) Publish(ctx context.Context, pub engine.Publication) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "editorial.tracker.gitlab"})

	path, iid, err := ParseThreadID(pub.ThreadID)
	if err != nil {
		return err
	}

	if strings.TrimSpace(pub.Reply) != "" {
		_, _, err := g.client.Notes.CreateIssueNote(path, iid, &gitlab.CreateIssueNoteOptions{
			Body: gitlab.Ptr(pub.Reply),
		}, gitlab.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("posting reply note: %w", err)
		}
	}

	if pub.ThreadLabel != "" {
		if err := g.setThreadLabel(ctx, path, iid, pub.ThreadLabel); err != nil {
			return err
		}
	}

	if pub.ProjectLabel != "" {
		if err := g.setProjectTopic(ctx, pub.ProjectID, pub.ProjectLabel); err != nil {
			return err
		}
	}

	slog.InfoContext(ctx, "publication applied to gitlab",
		"thread_id", pub.ThreadID,
		"reply_chars", len(pub.Reply),
		"thread_label", pub.ThreadLabel,
		"project_label", pub.ProjectLabel)
	return nil
}

func (g *GitLab) setThreadLabel(ctx context.Context, path string, iid int64, label string) error {
	issue, _, err := g.client.Issues.GetIssue(path, iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetching issue labels: %w", err)
	}

	stale := replacedLabels(issue.Labels, threadLabelPrefix, label)
	if len(stale) == 0 && slices.Contains(issue.Labels, label) {
		return nil
	}

	opts := &gitlab.UpdateIssueOptions{AddLabels: &gitlab.LabelOptions{label}}
	if len(stale) > 0 {
		remove := gitlab.LabelOptions(stale)
		opts.RemoveLabels = &remove
	}
	if _, _, err := g.client.Issues.UpdateIssue(path, iid, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("updating issue labels: %w", err)
	}
	return nil
}

func (g *GitLab) setProjectTopic(ctx context.Context, projectID, topic string) error {
	project, _, err := g.client.Projects.GetProject(projectID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetching project topics: %w", err)
	}

	stale := replacedLabels(project.Topics, projectTopicPrefix, topic)
	if len(stale) == 0 && slices.Contains(project.Topics, topic) {
		return nil
	}

	topics := make([]string, 0, len(project.Topics)+1)
	for _, t := range project.Topics {
		if !slices.Contains(stale, t) && t != topic {
			topics = append(topics, t)
		}
	}
	topics = append(topics, topic)

	if _, _, err := g.client.Projects.EditProject(projectID, &gitlab.EditProjectOptions{
		Topics: &topics,
	}, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("updating project topics: %w", err)
	}
	return nil
}

// replacedLabels returns the labels sharing prefix that differ from keep.
func replacedLabels(labels []string, prefix, keep string) []string {
	var out []string
	for _, l := range labels {
		if strings.HasPrefix(strings.ToLower(l), prefix) && l != keep {
			out = append(out, l)
		}
	}
	return out
}
