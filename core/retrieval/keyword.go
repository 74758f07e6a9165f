package retrieval

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// englishStopwords is the closed stopword list applied when building
// keyword queries. Tokens on it carry no lexical signal worth matching.
var englishStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "if": true, "then": true, "else": true, "about": true,
	"to": true, "of": true, "with": true, "by": true, "from": true,
	"up": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "can": true,
	"could": true, "will": true, "would": true, "should": true,
	"may": true, "might": true, "must": true, "i": true, "you": true,
	"he": true, "she": true, "it": true, "we": true, "they": true,
	"my": true, "your": true, "his": true, "her": true, "its": true,
	"our": true, "their": true, "what": true, "when": true,
	"where": true, "why": true, "how": true, "which": true,
	"who": true, "whom": true, "me": true, "know": true,
}

// BuildKeywordQuery tokenizes free text into an OR-joined keyword query
// for the sparse index. Returns "" when every token is a stopword or too
// short, in which case sparse search should be skipped.
func BuildKeywordQuery(query string) string {
	var kept []string
	for _, token := range tokenizeQuery(query) {
		if englishStopwords[token] {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " OR ")
}

// tokenizeQuery lowercases, strips non-alphanumeric characters (hyphen
// excluded) from token edges, and drops tokens shorter than two
// characters. Order is preserved; duplicates are removed.
func tokenizeQuery(query string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, raw := range strings.Fields(query) {
		cleaned := strings.ToLower(strings.TrimFunc(raw, func(r rune) bool {
			return !isAlphanumeric(r) && r != '-'
		}))
		if utf8.RuneCountInString(cleaned) < 2 || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		tokens = append(tokens, cleaned)
	}
	return tokens
}

func isAlphanumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// PrepareEmbeddingText normalizes message content before embedding:
// texts under minLen characters are skipped (returns ""), texts over
// maxLen are truncated at a word boundary to stay inside model context.
func PrepareEmbeddingText(content string, minLen, maxLen int) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < minLen {
		return ""
	}
	if len(trimmed) <= maxLen {
		return trimmed
	}
	truncated := trimmed[:maxLen]
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 0 {
		return trimmed[:lastSpace]
	}
	return truncated
}
