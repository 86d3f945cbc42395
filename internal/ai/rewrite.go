package ai

import (
	"fmt"
	"strings"
)

const rewriteSystemPrompt = "You rewrite natural-language questions into a more retrieval-friendly form for semantic search. Return only the rewritten question."

// buildRewritePrompt folds the optional structured context into the
// rewrite prompt the way the edge and cloud backends share.
func buildRewritePrompt(query string, rc *RewriteContext) string {
	if rc == nil {
		return query
	}
	var sb strings.Builder
	sb.WriteString(query)
	if len(rc.Bindings) > 0 {
		fmt.Fprintf(&sb, "\nBindings: %s", strings.Join(rc.Bindings, ", "))
	}
	if len(rc.Libraries) > 0 {
		fmt.Fprintf(&sb, "\nLibraries: %s", strings.Join(rc.Libraries, ", "))
	}
	if len(rc.Tags) > 0 {
		fmt.Fprintf(&sb, "\nTags: %s", strings.Join(rc.Tags, ", "))
	}
	if len(rc.CodeSnippets) > 0 {
		fmt.Fprintf(&sb, "\nCode:\n%s", strings.Join(rc.CodeSnippets, "\n---\n"))
	}
	return sb.String()
}

// ConsolidationPrompt builds the curator's merge prompt for a set of
// near-duplicate memory texts already joined with the "\n---\n" separator.
func ConsolidationPrompt(combined string) string {
	return fmt.Sprintf("Merge the following related memories into a single, accurate, non-redundant memory capturing their union of meaning:\n\n%s", combined)
}

const ConsolidationSystemPrompt = "You are a memory curator. Merge these memories accurately."
