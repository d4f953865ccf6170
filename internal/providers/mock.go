package providers

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// OperationExtractQuestions is the operation name used for window extraction calls.
const OperationExtractQuestions = "extract_questions"

var numberedLine = regexp.MustCompile(`^(?:[Qq](?:uestion)?\.?\s*)?\d{1,3}[\.\):]\s+\S`)

// MockProvider answers deterministically without network access. For
// extraction calls it treats numbered lines and lines ending in "?" inside
// the request context as questions.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	if err := ctx.Err(); err != nil {
		return GenerateResponse{}, info, err
	}
	if req.Operation != OperationExtractQuestions {
		return GenerateResponse{Text: "Mock response."}, info, nil
	}

	type question struct {
		QuestionText    string `json:"question_text"`
		QuestionType    string `json:"question_type"`
		SubjectTopic    string `json:"subject_topic"`
		DifficultyLevel string `json:"difficulty_level"`
		Context         string `json:"context"`
	}
	questions := []question{}
	seen := map[string]bool{}
	for _, block := range req.Context {
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || seen[line] {
				continue
			}
			if !numberedLine.MatchString(line) && !strings.HasSuffix(line, "?") {
				continue
			}
			seen[line] = true
			questions = append(questions, question{
				QuestionText:    line,
				QuestionType:    mockQuestionType(line),
				SubjectTopic:    "general",
				DifficultyLevel: mockDifficulty(line),
				Context:         "detected by mock provider",
			})
		}
	}
	b, err := json.Marshal(map[string]any{
		"questions":             questions,
		"summary":               "Mock extraction over the supplied pages.",
		"total_questions_found": len(questions),
	})
	if err != nil {
		return GenerateResponse{}, info, err
	}
	return GenerateResponse{Text: string(b)}, info, nil
}

func mockQuestionType(line string) string {
	l := strings.ToLower(line)
	switch {
	case strings.Contains(l, "(a)"):
		return "multiple_choice"
	case strings.HasPrefix(l, "true or false") || strings.Contains(l, "true/false"):
		return "true_false"
	case strings.Contains(l, "calculate") || strings.Contains(l, "solve") || strings.Contains(l, "find the value"):
		return "numerical"
	case strings.Contains(l, "explain") || strings.Contains(l, "describe") || strings.Contains(l, "discuss"):
		return "essay"
	default:
		return "short_answer"
	}
}

func mockDifficulty(line string) string {
	switch n := len(strings.Fields(line)); {
	case n <= 8:
		return "easy"
	case n <= 20:
		return "medium"
	default:
		return "hard"
	}
}
