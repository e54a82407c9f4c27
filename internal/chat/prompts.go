package chat

import (
	"fmt"
	"strings"

	"docuchat/internal/models"
)

func paraphrasePrompt(message string, n int) string {
	return fmt.Sprintf(""+
		"Rewrite the following question %d times using different vocabulary, one rewrite per line.\n"+
		"Keep the meaning identical. Output only the rewrites, nothing else.\n\n"+
		"Question: %s", n, message)
}

// parseParaphrases tolerates numbered lists, dashes and "Variant N:" prefixes
// in model output and returns at most n non-empty rewrites.
func parseParaphrases(text string, n int) []string {
	out := make([]string, 0, n)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		if idx := strings.Index(line, ":"); idx >= 0 && idx < 12 {
			line = strings.TrimSpace(line[idx+1:])
		}
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == n {
			break
		}
	}
	return out
}

func answerPrompt(question string) string {
	return "" +
		"Question: " + question + "\n\n" +
		"Answer using ONLY the provided context snippets.\n" +
		"Do NOT use outside knowledge.\n" +
		"If the snippets do not contain enough information, say so explicitly.\n" +
		"Reference snippets as [C1], [C2], etc. when making factual claims.\n\n" +
		"Context snippets:"
}

func contextSnippets(retrieved []models.RetrievedChunk) []string {
	out := make([]string, 0, len(retrieved))
	for i, r := range retrieved {
		out = append(out, fmt.Sprintf("C%d [document %d, chunk %d]: %s", i+1, r.DocumentID, r.ChunkIndex, r.Content))
	}
	return out
}
