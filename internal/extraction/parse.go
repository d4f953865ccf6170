package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"questflow/internal/models"
	"questflow/internal/util"
)

// Reply is the structured answer expected from the model for one window.
type Reply struct {
	Questions           []models.ExtractedQuestion `json:"questions"`
	Summary             string                     `json:"summary"`
	TotalQuestionsFound int                        `json:"total_questions_found"`
}

// ParseReply recovers a Reply from raw model output. It tolerates code fences
// and prose around the JSON, and accepts a bare array of questions. The
// document must satisfy the result schema. Errors wrap util.ErrResponseParse.
func ParseReply(raw string) (Reply, error) {
	doc, err := parseStructuredJSON(raw)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", util.ErrResponseParse, err)
	}
	if arr, ok := doc.([]any); ok {
		doc = map[string]any{"questions": arr}
	}
	if err := resultSchema.Validate(doc); err != nil {
		return Reply{}, fmt.Errorf("%w: reply does not match schema: %v", util.ErrResponseParse, err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", util.ErrResponseParse, err)
	}
	var reply Reply
	if err := json.Unmarshal(b, &reply); err != nil {
		return Reply{}, fmt.Errorf("%w: decode reply: %v", util.ErrResponseParse, err)
	}
	reply.Questions = normalizeQuestions(reply.Questions)
	reply.Summary = strings.TrimSpace(reply.Summary)
	reply.TotalQuestionsFound = len(reply.Questions)
	return reply, nil
}

func parseStructuredJSON(content string) (any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty reply")
	}
	candidates := []string{content}
	if stripped := stripCodeFence(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}
	for _, c := range candidates {
		var parsed any
		if err := json.Unmarshal([]byte(c), &parsed); err == nil {
			switch parsed.(type) {
			case map[string]any, []any:
				return parsed, nil
			}
		}
	}
	return nil, fmt.Errorf("no JSON object found in reply")
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(s string) string {
	objectStart := strings.Index(s, "{")
	arrayStart := strings.Index(s, "[")
	start, closeChar := -1, ""
	switch {
	case objectStart >= 0 && (arrayStart < 0 || objectStart < arrayStart):
		start, closeChar = objectStart, "}"
	case arrayStart >= 0:
		start, closeChar = arrayStart, "]"
	default:
		return ""
	}
	end := strings.LastIndex(s, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}

var ws = regexp.MustCompile(`\s+`)

// CanonicalLabel lower-cases a category label and collapses its whitespace.
func CanonicalLabel(s string) string {
	return ws.ReplaceAllString(strings.TrimSpace(strings.ToLower(s)), " ")
}

func normalizeQuestions(in []models.ExtractedQuestion) []models.ExtractedQuestion {
	out := make([]models.ExtractedQuestion, 0, len(in))
	for _, q := range in {
		q.QuestionText = strings.TrimSpace(q.QuestionText)
		if q.QuestionText == "" {
			continue
		}
		q.QuestionType = CanonicalLabel(q.QuestionType)
		q.DifficultyLevel = CanonicalLabel(q.DifficultyLevel)
		q.SubjectTopic = strings.TrimSpace(q.SubjectTopic)
		q.Context = strings.TrimSpace(q.Context)
		q.ImageID = strings.TrimSpace(q.ImageID)
		out = append(out, q)
	}
	return out
}
