package memory

import (
	"regexp"
	"strings"

	"basegraph.app/editorial/internal/model"
)

var boldQuestion = regexp.MustCompile(`\*\*([^*]+\?)\*\*`)

const minQuestionLength = 20

var confirmationPrefixes = []string{"does that", "sound good", "make sense"}

// ExtractQuestions returns the substantive bold questions in an editor reply,
// in order of appearance and without duplicates. Short questions and
// confirmations ("does that work?") are skipped.
func ExtractQuestions(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range boldQuestion.FindAllStringSubmatch(text, -1) {
		q := strings.TrimSpace(m[1])
		if len(q) < minQuestionLength {
			continue
		}
		lower := strings.ToLower(q)
		if hasAnyPrefix(lower, confirmationPrefixes) {
			continue
		}
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, q)
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// pendingQuestions returns the questions of the trailing editor turns, the ones
// the author has not replied to yet.
func pendingQuestions(turns []model.ConversationTurn) []string {
	var out []string
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Role != model.RoleEditor {
			break
		}
		out = append(ExtractQuestions(t.Text), out...)
	}
	return out
}

// MergeQuestions concatenates question lists, dropping case-insensitive duplicates.
func MergeQuestions(groups ...[]string) []string {
	var out []string
	seen := map[string]bool{}
	for _, g := range groups {
		for _, q := range g {
			key := strings.ToLower(strings.TrimSpace(q))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(q))
		}
	}
	return out
}
