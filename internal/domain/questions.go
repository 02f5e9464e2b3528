package domain

import (
	"encoding/json"
	"fmt"
)

// questionFile mirrors the uploaded file shape: id and explanation optional,
// everything else required.
type questionFile struct {
	ID           *int     `json:"id"`
	Text         string   `json:"question"`
	Choices      []string `json:"choices"`
	CorrectIndex *int     `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// ParseQuestionSet validates an uploaded question file and converts it into
// strict Question records. Malformed input is rejected wholesale; nothing is
// coerced. Missing IDs default to the 1-based position.
func ParseQuestionSet(data []byte) ([]Question, error) {
	var raw []questionFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuestionFile, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty question list", ErrInvalidQuestionFile)
	}

	questions := make([]Question, 0, len(raw))
	for i, q := range raw {
		if q.Text == "" {
			return nil, fmt.Errorf("%w: question %d has no text", ErrInvalidQuestionFile, i+1)
		}
		if len(q.Choices) < 2 {
			return nil, fmt.Errorf("%w: question %d needs at least 2 choices", ErrInvalidQuestionFile, i+1)
		}
		if q.CorrectIndex == nil || *q.CorrectIndex < 0 || *q.CorrectIndex >= len(q.Choices) {
			return nil, fmt.Errorf("%w: question %d has an out-of-range correctIndex", ErrInvalidQuestionFile, i+1)
		}
		id := i + 1
		if q.ID != nil {
			id = *q.ID
		}
		questions = append(questions, Question{
			ID:           id,
			Text:         q.Text,
			Choices:      q.Choices,
			CorrectIndex: *q.CorrectIndex,
			Explanation:  q.Explanation,
		})
	}
	return questions, nil
}

// SampleQuestions is the built-in fallback set used when no file is loaded.
func SampleQuestions() []Question {
	return []Question{
		{
			ID:           1,
			Text:         "Which planet is known as the Red Planet?",
			Choices:      []string{"Earth", "Mars", "Jupiter", "Venus"},
			CorrectIndex: 1,
			Explanation:  "Mars appears red due to iron oxide (rust) on its surface.",
		},
		{
			ID:           2,
			Text:         "In biology, DNA stands for…",
			Choices:      []string{"Deoxyribonucleic Acid", "Dicarboxylic Nitrogenous Acid", "Dual Nucleotide Assembly", "Dynamic Nuclear Array"},
			CorrectIndex: 0,
			Explanation:  "DNA = Deoxyribonucleic Acid.",
		},
	}
}
