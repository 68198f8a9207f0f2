package estimator

import (
	"context"
	"fmt"
	"strings"

	"mangaguide/pkg/models"
)

const llmSystemPrompt = `You are an expert on anime-to-manga chapter mapping.
Respond with a single JSON object and nothing else.`

const llmUserPrompt = `ANIME TITLE: %q
EPISODE NUMBER: %d

1. Determine the exact manga chapter where episode %d ends.
2. Give the next chapter to start reading (the chapter after that episode).
3. Keep reasoning short and direct.

Respond in this exact JSON format:
{
  "continueFromChapter": number,
  "continueFromVolume": number or null,
  "confidence": "high" | "medium" | "low",
  "reasoning": "After episode %d, continue reading from chapter X (volume Y).",
  "specialNotes": string or null
}
If you do not know the series, set continueFromChapter to null.`

// Completer is satisfied by Client.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLM asks a language model for the continuation chapter. Model answers are
// unverified, so confidence is capped at medium.
type LLM struct {
	completer Completer
}

func NewLLM(c Completer) *LLM {
	return &LLM{completer: c}
}

func (l *LLM) Name() string { return "llm" }

type llmAnswer struct {
	ContinueFromChapter *int    `json:"continueFromChapter"`
	ContinueFromVolume  *int    `json:"continueFromVolume"`
	Confidence          string  `json:"confidence"`
	Reasoning           string  `json:"reasoning"`
	SpecialNotes        *string `json:"specialNotes"`
}

func (l *LLM) Estimate(ctx context.Context, title string, episode int) (Estimate, error) {
	prompt := fmt.Sprintf(llmUserPrompt, strings.TrimSpace(title), episode, episode, episode)
	content, err := l.completer.CompleteJSON(ctx, llmSystemPrompt, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return Estimate{}, ctx.Err()
		}
		return Estimate{}, fmt.Errorf("%w: %w", ErrDeclined, err)
	}

	var answer llmAnswer
	if err := DecodeJSON(content, &answer); err != nil {
		return Estimate{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if answer.ContinueFromChapter == nil {
		return Estimate{}, fmt.Errorf("%w: model did not name a chapter", ErrDeclined)
	}

	var confidence models.Confidence
	if strings.TrimSpace(answer.Confidence) != "" {
		c, ok := models.ParseConfidence(answer.Confidence)
		if !ok {
			return Estimate{}, fmt.Errorf("%w: confidence %q", ErrMalformed, answer.Confidence)
		}
		confidence = c
	}

	return Normalize(Estimate{
		Chapter:      *answer.ContinueFromChapter,
		Volume:       answer.ContinueFromVolume,
		Confidence:   confidence,
		Reasoning:    answer.Reasoning,
		SpecialNotes: answer.SpecialNotes,
		Method:       models.MethodLLM,
	}, models.ConfidenceMedium)
}
