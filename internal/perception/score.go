package perception

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// stopwords are dropped from every tokenization; short common words that
// carry no identity signal on their own.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "that": true, "this": true, "with": true, "from": true,
	"have": true, "has": true, "had": true, "but": true, "not": true,
	"you": true, "your": true, "about": true, "into": true, "than": true,
	"then": true, "them": true, "they": true, "their": true, "its": true,
	"it's": true, "will": true, "would": true, "could": true, "should": true,
	"can": true, "may": true, "might": true, "just": true, "over": true,
	"also": true, "been": true, "being": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "how": true,
}

// Tokenize lowercases s and returns its alphanumeric tokens of length ≥ 3,
// dropping stopwords.
func Tokenize(s string) []string {
	lower := strings.ToLower(s)
	raw := tokenPattern.FindAllString(lower, -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) < 3 {
			continue
		}
		if stopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Tokenize(s) {
		set[t] = true
	}
	return set
}

// overlapRatio returns the fraction of phrases (e.g. commitment labels)
// whose tokens intersect captureTokens.
func overlapRatio(phrases []string, captureTokens map[string]bool) float64 {
	if len(phrases) == 0 {
		return 0
	}
	hits := 0
	for _, phrase := range phrases {
		for _, tok := range Tokenize(phrase) {
			if captureTokens[tok] {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(phrases))
}

// IdentityRelevance scores capture against ctx: a weighted sum of overlap
// with commitment labels (0.5), identity themes (0.3), and vault topics
// (0.2), capped at 1.
func IdentityRelevance(capture FeedCapture, ctx Context) float64 {
	captureTokens := tokenSet(capture.Title + " " + capture.Content)

	score := 0.5*overlapRatio(ctx.CommitmentLabels, captureTokens) +
		0.3*overlapRatio(ctx.IdentityThemes, captureTokens) +
		0.2*overlapRatio(ctx.VaultTopics, captureTokens)

	if score > 1 {
		score = 1
	}
	return score
}
