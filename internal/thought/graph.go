package thought

import (
	"path"
	"sort"

	"github.com/boshu2/heartbeat/internal/vaultstore"
)

// scanDirs are the vault directories ThoughtEvaluator scans, per the spec.
var scanDirs = []string{vaultstore.DirThoughts, vaultstore.DirSelf}

// Scan walks scanDirs and returns one Node per markdown file found, with
// frontmatter-derived metadata and outgoing wiki-links extracted with
// fenced code blocks excluded.
func Scan(v *vaultstore.Vault) ([]Node, error) {
	var nodes []Node
	for _, dir := range scanDirs {
		names, err := v.ListMd(dir)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			rel := path.Join(dir, name)
			text, ok, err := v.Read(rel)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			fm, _ := vaultstore.ParseFrontmatterLenient(text)
			info := v.Stat(rel)
			var modTime = zeroTime
			if info != nil {
				modTime = info.ModTime()
			}

			node := Node{
				ID:            vaultstore.Canonicalize(name),
				Path:          rel,
				IsMap:         fm.StringField("type") == "map",
				Confidence:    normalizeConfidence(fm.StringField("confidence")),
				ModTime:       modTime,
				OutgoingLinks: linkTargets(fm.Body),
			}
			if node.IsMap {
				node.OpenQuestions = extractOpenQuestions(fm.Body)
			}
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

func linkTargets(body string) []string {
	links := vaultstore.ExtractWikiLinks(body)
	seen := make(map[string]bool, len(links))
	var out []string
	for _, l := range links {
		if seen[l.Target] {
			continue
		}
		seen[l.Target] = true
		out = append(out, l.Target)
	}
	sort.Strings(out)
	return out
}

func normalizeConfidence(raw string) Confidence {
	switch raw {
	case string(ConfidenceFelt):
		return ConfidenceFelt
	case string(ConfidenceObserved):
		return ConfidenceObserved
	case string(ConfidenceTested):
		return ConfidenceTested
	default:
		return ConfidenceUnspecified
	}
}
