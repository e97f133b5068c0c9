package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidResponse means the model output contained no parsable JSON object.
	ErrInvalidResponse = errors.New("invalid response format from model")
	// ErrValidation means the model returned JSON with the wrong shape.
	ErrValidation = errors.New("invalid analysis result structure")
)

// AnalysisResult is the structured health verdict for an ingredient list
type AnalysisResult struct {
	Score       int      `json:"score"` // 1-10, higher is healthier
	Explanation string   `json:"explanation"`
	Pros        []string `json:"pros"`
	Cons        []string `json:"cons"`
}

// Analyzer turns an ingredient list into an AnalysisResult by prompting a
// text model and parsing its response. It holds no state beyond the generator.
type Analyzer struct {
	gen Generator
}

// NewAnalyzer creates a new Analyzer
func NewAnalyzer(gen Generator) *Analyzer {
	return &Analyzer{gen: gen}
}

const analysisPromptFormat = `You are a helpful nutrition assistant. Based on the following ingredients: %s.

Provide a health score from 1 to 10 (where 10 is the healthiest). Explain the score in a simple paragraph. List the top 3 pros and cons.

Respond ONLY with a valid JSON object with the keys: 'score' (number), 'explanation' (string), 'pros' (array of strings), 'cons' (array of strings).

Example format:
{
  "score": 7,
  "explanation": "Your explanation here",
  "pros": ["Pro 1", "Pro 2", "Pro 3"],
  "cons": ["Con 1", "Con 2", "Con 3"]
}`

// Analyze scores the given ingredient list. The list must be non-empty.
func (a *Analyzer) Analyze(ctx context.Context, ingredients []string) (*AnalysisResult, error) {
	if len(ingredients) == 0 {
		return nil, fmt.Errorf("ingredient list is empty")
	}

	prompt := fmt.Sprintf(analysisPromptFormat, strings.Join(ingredients, ", "))

	text, err := a.gen.Generate(ctx, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("generating analysis: %w", err)
	}

	return parseAnalysisText(text)
}

// parseAnalysisText extracts and validates the JSON verdict from raw model
// output. The model sometimes wraps the object in prose or markdown fences
// despite the prompt, so this scans for the outermost brace-delimited object.
func parseAnalysisText(text string) (*AnalysisResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrInvalidResponse)
	}
	text = text[startIdx : endIdx+1]

	// Decode loosely first so type mismatches surface as validation failures
	// rather than parse failures.
	var raw struct {
		Score       any `json:"score"`
		Explanation any `json:"explanation"`
		Pros        any `json:"pros"`
		Cons        any `json:"cons"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	score, ok := raw.Score.(float64)
	if !ok {
		return nil, fmt.Errorf("%w: score is not a number", ErrValidation)
	}
	explanation, ok := raw.Explanation.(string)
	if !ok {
		return nil, fmt.Errorf("%w: explanation is not a string", ErrValidation)
	}
	pros, err := toStringSlice(raw.Pros)
	if err != nil {
		return nil, fmt.Errorf("%w: pros: %v", ErrValidation, err)
	}
	cons, err := toStringSlice(raw.Cons)
	if err != nil {
		return nil, fmt.Errorf("%w: cons: %v", ErrValidation, err)
	}

	// No range check on score and no length cap on pros/cons; the result is
	// returned as the model produced it.
	return &AnalysisResult{
		Score:       int(score),
		Explanation: explanation,
		Pros:        pros,
		Cons:        cons,
	}, nil
}

func toStringSlice(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("not an array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("element is not a string")
		}
		out = append(out, s)
	}
	return out, nil
}
