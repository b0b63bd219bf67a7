package catalog

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Markers are the upstream's localized messages that signal throttling
const (
	MarkerRateLimited    = "請求過於頻繁"
	MarkerQuotaExhausted = "今日下載配額用盡"
)

// Verdict is the classification of an artifact response
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictRateLimited
	VerdictQuotaExhausted
	VerdictFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictRateLimited:
		return "rate_limited"
	case VerdictQuotaExhausted:
		return "quota_exhausted"
	default:
		return "failed"
	}
}

// Classify judges an artifact response by status and body. Markers are
// looked up the same way for every status: first in the decoded strings of
// a JSON body, then in the raw bytes. Only a non-empty, non-JSON 2xx body
// without a marker is an artifact.
func Classify(status int, body []byte) Verdict {
	trimmed := bytes.TrimSpace(body)
	isJSON := len(trimmed) > 0 && trimmed[0] == '{'

	if isJSON {
		var doc interface{}
		if err := json.Unmarshal(trimmed, &doc); err == nil {
			if v, ok := markerVerdict(strings.Join(jsonStrings(doc, nil), "\n")); ok {
				return v
			}
		}
	}
	if v, ok := markerVerdict(string(body)); ok {
		return v
	}

	if status < 200 || status >= 300 || len(trimmed) == 0 || isJSON {
		return VerdictFailed
	}
	return VerdictOK
}

// jsonStrings collects every string value and key in a decoded document
func jsonStrings(v interface{}, out []string) []string {
	switch t := v.(type) {
	case string:
		out = append(out, t)
	case []interface{}:
		for _, item := range t {
			out = jsonStrings(item, out)
		}
	case map[string]interface{}:
		for k, item := range t {
			out = append(out, k)
			out = jsonStrings(item, out)
		}
	}
	return out
}

func markerVerdict(text string) (Verdict, bool) {
	switch {
	case strings.Contains(text, MarkerQuotaExhausted):
		return VerdictQuotaExhausted, true
	case strings.Contains(text, MarkerRateLimited):
		return VerdictRateLimited, true
	default:
		return VerdictFailed, false
	}
}
