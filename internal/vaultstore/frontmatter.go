package vaultstore

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is a parsed YAML frontmatter block plus the markdown body that
// followed it. Parsing is total: malformed or absent frontmatter yields an
// empty map and the original text as body, it never returns an error to the
// caller's caller — callers that need to know about malformed input get a
// warning string via ParseFrontmatterLenient.
type Frontmatter struct {
	Fields map[string]any
	Body   string
}

const frontmatterDelim = "---"

// ParseFrontmatter splits text into YAML frontmatter and body. Absent or
// malformed frontmatter yields an empty field map and the full text as body.
func ParseFrontmatter(text string) Frontmatter {
	fm, _ := ParseFrontmatterLenient(text)
	return fm
}

// ParseFrontmatterLenient is like ParseFrontmatter but also returns a
// human-readable warning when the frontmatter block was present but failed
// to parse as YAML, so callers can surface it without aborting.
func ParseFrontmatterLenient(text string) (Frontmatter, string) {
	trimmed := strings.TrimLeft(text, "\n")
	if !strings.HasPrefix(trimmed, frontmatterDelim) {
		return Frontmatter{Fields: map[string]any{}, Body: text}, ""
	}

	rest := trimmed[len(frontmatterDelim):]
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	end := findClosingDelim(rest)
	if end < 0 {
		return Frontmatter{Fields: map[string]any{}, Body: text}, "frontmatter: no closing delimiter"
	}

	raw := rest[:end]
	body := rest[end:]
	body = strings.TrimPrefix(body, frontmatterDelim)
	body = strings.TrimPrefix(body, "\r\n")
	body = strings.TrimPrefix(body, "\n")

	fields := map[string]any{}
	if err := yaml.Unmarshal([]byte(raw), &fields); err != nil {
		return Frontmatter{Fields: map[string]any{}, Body: text}, fmt.Sprintf("frontmatter: %v", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return Frontmatter{Fields: fields, Body: body}, ""
}

// findClosingDelim finds the index of the line "---" that closes a
// frontmatter block opened at the start of s.
func findClosingDelim(s string) int {
	lines := strings.SplitAfter(s, "\n")
	offset := 0
	for _, line := range lines {
		trimmedLine := strings.TrimRight(line, "\r\n")
		if trimmedLine == frontmatterDelim {
			return offset
		}
		offset += len(line)
	}
	return -1
}

// WriteFrontmatter serializes fields as a YAML frontmatter block followed by
// body, round-tripping with ParseFrontmatter for the canonical key set.
func WriteFrontmatter(fields map[string]any, body string) (string, error) {
	var sb strings.Builder
	sb.WriteString(frontmatterDelim)
	sb.WriteString("\n")

	if len(fields) > 0 {
		out, err := yaml.Marshal(fields)
		if err != nil {
			return "", fmt.Errorf("marshal frontmatter: %w", err)
		}
		sb.Write(out)
	}

	sb.WriteString(frontmatterDelim)
	sb.WriteString("\n")
	sb.WriteString(body)
	return sb.String(), nil
}

// StringField reads a string field, tolerating absence or wrong type.
func (f Frontmatter) StringField(key string) string {
	v, ok := f.Fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// ListField reads a field as a list of strings. It accepts a native YAML
// list or an inline array-syntax string like "[a, b, c]", matching the
// spec's tolerance for either topics encoding.
func (f Frontmatter) ListField(key string) []string {
	v, ok := f.Fields[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case string:
		return parseInlineArray(t)
	default:
		return nil
	}
}

// parseInlineArray parses a "[a, b, c]" style inline list, used by vaults
// that write topics as an inline scalar rather than a block sequence.
func parseInlineArray(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
