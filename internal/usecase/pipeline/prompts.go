package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"corpus-qa/internal/domain"
)

var (
	resultTagPattern    = regexp.MustCompile(`(?s)<result>(.*?)</result>`)
	numberedListPattern = regexp.MustCompile(`^\d+[.)]\s+`)
)

// extractResultTag pulls the content of a <result> tag out of a model
// response, falling back to the trimmed full text when no tag is present.
func extractResultTag(text string) string {
	if m := resultTagPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// formatHistory renders conversation turns as "Role: content" lines.
func formatHistory(history []domain.HistoryTurn) string {
	var lines []string
	for _, turn := range history {
		role := turn.Role
		if role == "" {
			role = "user"
		}
		role = strings.ToUpper(role[:1]) + role[1:]
		lines = append(lines, fmt.Sprintf("%s: %s", role, strings.TrimSpace(turn.Content)))
	}
	return strings.Join(lines, "\n")
}

func buildRewritePrompt(question string, history []domain.HistoryTurn) string {
	return fmt.Sprintf(`Referring to the conversation history, create a standalone version of the <question>.
The rewritten question must keep all critical terms and be understandable without the conversation.
Wrap the result in <result> tags. If the conversation is irrelevant, return the original question inside <result> tags without modifications.

Conversation so far:
%s

Create a standalone question for: <question>%s</question>`, formatHistory(history), question)
}

func buildVariantPrompt(question string, count int) string {
	return fmt.Sprintf(`You are an expert search query generator.

Generate up to %d diverse search queries that preserve the meaning of the user's question.
Focus on different aspects like main keywords, synonyms, and alternative phrasings.
Output ONLY the generated queries, one per line. Do not add numbering or bullets or explanations.

Question: %s`, count, question)
}

func buildHydePrompt(question string) string {
	return fmt.Sprintf(`Write a short passage of 3-5 sentences that plausibly answers the following question,
drawing on your general knowledge. Use an informative tone. Do not hedge or add disclaimers.

Question: %s`, question)
}

// parseVariants extracts up to max non-duplicate paraphrases from a model
// response. Dedup is case-insensitive exact-text, against the standalone
// question and against each other. Leading list markers are stripped.
func parseVariants(text, standalone string, max int) []string {
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(standalone)): true}
	var variants []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-* "))
		// Models sometimes number their lines despite the prompt; "1. foo"
		// and "1) foo" lose the marker, "2024 revenue" keeps its digits.
		trimmed = strings.TrimSpace(numberedListPattern.ReplaceAllString(trimmed, ""))
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		variants = append(variants, trimmed)
		if len(variants) >= max {
			break
		}
	}
	return variants
}
