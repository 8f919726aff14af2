// Package normalizer repairs vision-model completions into valid JSON.
//
// The model is prompted to answer with a JSON object but routinely wraps it
// in markdown fences or conversational prose. Normalize never fails: every
// input produces either the parsed object or a tagged fallback.
package normalizer

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// FallbackError is the error field value carried by the fallback object.
const FallbackError = "Failed to parse AI response"

var whitespaceRun = regexp.MustCompile(`\s+`)

// Result is the outcome of normalizing one completion. When Fallback is set
// the Object holds fixed defaults and Reason says what went wrong; callers
// can tell degraded defaults apart from a genuine analysis.
type Result struct {
	Object   map[string]any
	Fallback bool
	Reason   string
}

// Normalize coerces a model completion into a JSON object.
//
// It first tries the input verbatim. Failing that, it extracts the substring
// from the first '{' to the last '}', collapses whitespace runs, and parses
// again. A present but non-array seo_keywords field is replaced with an
// empty array on every success path. Total failure yields the fixed
// fallback object; Normalize never returns an error.
func Normalize(raw string) Result {
	if obj, ok := parseObject(raw); ok {
		return Result{Object: coerceKeywords(obj)}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		slog.Warn("no JSON object found in model response", "length", len(raw))
		return fallback("no JSON object found in response")
	}

	cleaned := whitespaceRun.ReplaceAllString(raw[start:end+1], " ")
	obj, ok := parseObject(cleaned)
	if !ok {
		slog.Warn("extracted JSON candidate failed to parse", "candidate_length", len(cleaned))
		return fallback("extracted candidate is not valid JSON")
	}

	slog.Debug("model response repaired via extraction", "start", start, "end", end)
	return Result{Object: coerceKeywords(obj)}
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// coerceKeywords prevents downstream type errors when the model emits
// seo_keywords as a string or number instead of a list.
func coerceKeywords(obj map[string]any) map[string]any {
	if v, present := obj["seo_keywords"]; present {
		if _, isList := v.([]any); !isList {
			slog.Debug("coercing non-list seo_keywords to empty list")
			obj["seo_keywords"] = []any{}
		}
	}
	return obj
}

func fallback(reason string) Result {
	return Result{
		Object: map[string]any{
			"brand":        "Unknown",
			"category":     "Unknown",
			"condition":    0,
			"seo_keywords": []any{},
			"error":        FallbackError,
		},
		Fallback: true,
		Reason:   reason,
	}
}
