package vaultstore

import (
	"path"
	"regexp"
	"strings"
)

// wikiLinkPattern matches [[target]], [[target|alias]], and [[target#anchor]].
var wikiLinkPattern = regexp.MustCompile(`\[\[([^\]|#]+)(#[^\]|]*)?(\|[^\]]*)?\]\]`)

// WikiLink is an occurrence of a [[...]] reference in a thought body.
type WikiLink struct {
	// Raw is the exact bracketed text as it appeared in the source.
	Raw string
	// Target is the canonicalized link target (see Canonicalize).
	Target string
}

// ExtractWikiLinks finds every [[wiki-link]] in body, skipping fenced code
// blocks (``` ... ```), and returns them with canonicalized targets.
func ExtractWikiLinks(body string) []WikiLink {
	stripped := stripFencedCode(body)
	matches := wikiLinkPattern.FindAllStringSubmatch(stripped, -1)
	links := make([]WikiLink, 0, len(matches))
	for _, m := range matches {
		links = append(links, WikiLink{
			Raw:    m[0],
			Target: Canonicalize(m[1]),
		})
	}
	return links
}

// Canonicalize normalizes a wiki-link target: lower-case, drop any path
// prefix, drop a trailing .md extension. Anchors and aliases are stripped by
// the caller's regex capture group before this is called but Canonicalize
// also handles a raw "target#anchor|alias" string defensively.
func Canonicalize(target string) string {
	t := strings.TrimSpace(target)
	if idx := strings.IndexByte(t, '|'); idx >= 0 {
		t = t[:idx]
	}
	if idx := strings.IndexByte(t, '#'); idx >= 0 {
		t = t[:idx]
	}
	t = path.Base(strings.TrimSpace(t))
	t = strings.TrimSuffix(t, ".md")
	return strings.ToLower(strings.TrimSpace(t))
}

// stripFencedCode removes the contents of fenced code blocks so that
// wiki-link-like text inside code samples is never treated as a real link.
func stripFencedCode(body string) string {
	lines := strings.Split(body, "\n")
	var out strings.Builder
	inFence := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			out.WriteString("\n")
			continue
		}
		if inFence {
			out.WriteString("\n")
			continue
		}
		out.WriteString(line)
		out.WriteString("\n")
	}
	return out.String()
}

// Slugify derives a filename-safe slug from an arbitrary label, matching the
// teacher's internal/storage/file.go:slugify (lower-case alphanumerics with
// single hyphens, trimmed).
func Slugify(label string) string {
	var result strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			result.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.Trim(result.String(), "-")
}
