package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"questflow/internal/models"
)

const SystemPrompt = "You are an expert educational content analyzer. You find exam-style questions in textbook pages and report them as strict JSON."

const promptTemplate = `Analyze the text from pages %s of a document and extract every question in it.

Find:
1. Explicit questions (sentences ending with '?').
2. Implicit questions: statements clearly meant to be answered.
3. Practice problems, exercises and assessment items.

Pages are separated by the marker "=== PAGE BREAK ===".

Questions already recorded from earlier pages are listed below. Do not emit them again,
even when they reappear because the pages overlap.
Already recorded:
%s

Output STRICT JSON with this schema:
{
  "questions": [
    {
      "question_text": "exact text of the question",
      "question_type": "multiple_choice|short_answer|essay|problem_solving|true_false|numerical|other",
      "subject_topic": "subject or topic area",
      "difficulty_level": "beginner|intermediate|advanced",
      "context": "brief surrounding information or the page it appears on",
      "image_id": "optional id of a figure the question refers to"
    }
  ],
  "summary": "brief summary of the analyzed content",
  "total_questions_found": 0
}

Rules:
- total_questions_found equals the number of entries in questions.
- If there are no new questions, return {"questions":[],"summary":"...","total_questions_found":0}.
- Return JSON only, no prose around it.`

type priorEntry struct {
	QuestionText string `json:"question_text"`
	QuestionType string `json:"question_type"`
}

// BuildPrompt renders the extraction prompt for w. Only the newest maxPrior
// prior questions are listed; maxPrior <= 0 lists all of them.
func BuildPrompt(w models.Window, prior []models.ExtractedQuestion, maxPrior int) string {
	return fmt.Sprintf(promptTemplate, w.PageRange, PriorSnapshot(prior, maxPrior))
}

// PriorSnapshot serializes prior questions as a JSON array of text/type pairs.
func PriorSnapshot(prior []models.ExtractedQuestion, maxPrior int) string {
	if maxPrior > 0 && len(prior) > maxPrior {
		prior = prior[len(prior)-maxPrior:]
	}
	entries := make([]priorEntry, 0, len(prior))
	for _, q := range prior {
		text := strings.TrimSpace(q.QuestionText)
		if text == "" {
			continue
		}
		entries = append(entries, priorEntry{QuestionText: text, QuestionType: q.QuestionType})
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func contextBlocks(w models.Window) []string {
	blocks := []string{w.CombinedContent}
	if len(w.Images) > 0 {
		blocks = append(blocks, "Figures on these pages: "+strings.Join(w.Images, ", "))
	}
	return blocks
}
