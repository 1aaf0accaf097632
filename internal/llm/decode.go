package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON reports that no decoding strategy could extract a JSON value
// from the model output. It is never retryable: resending the same prompt
// to a model that already answered in prose is not a transient condition.
var ErrNoJSON = errors.New("no decodable JSON in model output")

// DecodeJSON coerces raw model output into out. Models wrap JSON in
// markdown fences or surrounding prose often enough that a single
// json.Unmarshal is not good enough, so the strategies run in order:
// direct decode, fenced-block extraction, brace-matched substring. The
// first success wins.
func DecodeJSON(raw string, out any) error {
	for _, extract := range []func(string) (string, bool){
		directCandidate,
		fencedCandidate,
		braceCandidate,
	} {
		candidate, ok := extract(raw)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoJSON, truncateForError(raw))
}

func directCandidate(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// fencedCandidate extracts the body of the first ``` block, tolerating a
// language tag after the opening fence.
func fencedCandidate(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start < 0 {
		return "", false
	}
	rest := raw[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the "json" (or any) language tag line.
		if tag := strings.TrimSpace(rest[:nl]); tag == "" || !strings.ContainsAny(tag, "{[") {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// braceCandidate returns the substring between the first opening brace
// and its balanced closing brace, skipping braces inside string literals.
func braceCandidate(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

func truncateForError(raw string) string {
	const limit = 120
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[:limit] + "..."
}
