package usecase

import (
	"fmt"
	"strings"

	"corpus-qa/internal/usecase/pipeline"
)

// AnswerPromptBuilder renders the prompt sent to the generation model when
// synthesizing the final answer from retrieved passages.
type AnswerPromptBuilder interface {
	Build(question string, candidates []pipeline.Candidate) (string, error)
}

// ContextBlockPromptBuilder formats each passage as a numbered block with
// source provenance and score, followed by the grounding instructions and
// the question.
type ContextBlockPromptBuilder struct {
	additionalInstructions []string
}

// NewContextBlockPromptBuilder creates a prompt builder with optional extra
// instructions appended after the standard ones.
func NewContextBlockPromptBuilder(additionalInstructions ...string) AnswerPromptBuilder {
	return &ContextBlockPromptBuilder{additionalInstructions: additionalInstructions}
}

// Build renders the synthesis prompt.
func (b *ContextBlockPromptBuilder) Build(question string, candidates []pipeline.Candidate) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is required")
	}

	var sb strings.Builder
	sb.WriteString("You are a senior assistant that answers user questions from retrieved context.\n")
	sb.WriteString("Read the context blocks carefully and provide the most accurate answer possible.\n")
	sb.WriteString("If the context is insufficient, say so plainly instead of guessing.\n")
	for _, instr := range b.additionalInstructions {
		sb.WriteString(instr)
		sb.WriteString("\n")
	}

	sb.WriteString("\n<contexts>\n")
	for i, cand := range candidates {
		source := cand.Passage.SourceKey
		if source == "" {
			source = "unknown"
		}
		if cand.RerankScore != nil {
			fmt.Fprintf(&sb, "[%d] %s (score=%.3f)\n", i+1, source, *cand.RerankScore)
		} else {
			fmt.Fprintf(&sb, "[%d] %s\n", i+1, source)
		}
		sb.WriteString(strings.TrimSpace(cand.Passage.Content))
		sb.WriteString("\n\n")
	}
	sb.WriteString("</contexts>\n\n")

	sb.WriteString("Answer the following question without any preamble.\n\n")
	fmt.Fprintf(&sb, "<question>%s</question>", question)

	return sb.String(), nil
}
