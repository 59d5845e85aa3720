package textproc

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON object out of free-form model output. The model
// is allowed to wrap the object in prose or markdown fences; we take the
// substring between the first '{' and the last '}' and try to parse it.
// Returns false when no parseable object is present, in which case callers
// fall back to treating the whole text as unstructured.
func ExtractJSON(text string, v any) bool {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(text[start:end+1]), v) == nil
}

// ParseSections splits model output into named sections. Each header's
// content runs until the next known header or end of text. Headers are
// matched case-insensitively at the start of a line, with an optional ':'
// or '-' separator. Missing sections come back as empty strings.
func ParseSections(text string, headers []string) map[string]string {
	out := make(map[string]string, len(headers))
	type hit struct {
		header string
		start  int // content start
		pos    int // header position
	}
	var hits []hit
	lower := strings.ToLower(text)
	for _, h := range headers {
		idx := strings.Index(lower, strings.ToLower(h))
		if idx < 0 {
			out[h] = ""
			continue
		}
		content := idx + len(h)
		for content < len(text) && (text[content] == ':' || text[content] == '-' || text[content] == ' ') {
			content++
		}
		hits = append(hits, hit{header: h, start: content, pos: idx})
	}
	for _, h := range hits {
		end := len(text)
		for _, other := range hits {
			if other.pos > h.pos && other.pos < end {
				end = other.pos
			}
		}
		out[h.header] = strings.TrimSpace(text[h.start:end])
	}
	return out
}
