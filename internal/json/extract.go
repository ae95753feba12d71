// Package json provides JSON extraction utilities for parsing LLM responses.
//
// LLMs often return JSON embedded in text or with additional commentary.
// This package provides utilities to extract and parse JSON from such
// responses, and to turn a reply into a model.Decision.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON finds and returns the JSON object in a response string.
// It handles:
// 1. Pure JSON response - returns the full response
// 2. JSON wrapped in markdown code blocks (```json ... ```)
// 3. JSON object embedded in text - returns the first balanced object
//    that parses
func extractJSON(response string) (string, error) {
	trimmed := strings.TrimSpace(response)
	if isObject(trimmed) {
		return trimmed, nil
	}

	stripped := stripMarkdownCodeBlocks(trimmed)
	if isObject(stripped) {
		return stripped, nil
	}
	for _, text := range []string{stripped, trimmed} {
		if obj, ok := firstObject(text); ok {
			return obj, nil
		}
	}

	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview(trimmed, previewLen))
}

const previewLen = 100

// preview shortens s to max runes for error messages.
func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// firstObject returns the first balanced {...} span in text that parses as
// a JSON object.
func firstObject(text string) (string, bool) {
	for start := strings.Index(text, "{"); start != -1; {
		if end := matchBrace(text, start); end != -1 {
			candidate := text[start : end+1]
			if isObject(candidate) {
				return candidate, true
			}
		}
		next := strings.Index(text[start+1:], "{")
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", false
}

func isObject(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}

// matchBrace returns the index of the '}' closing the '{' at start, skipping
// braces inside string literals, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripMarkdownCodeBlocks removes a surrounding markdown code fence, or
// returns the body of the first fenced block when text surrounds it.
func stripMarkdownCodeBlocks(response string) string {
	trimmed := strings.TrimSpace(response)

	if !strings.HasPrefix(trimmed, "```") {
		open := strings.Index(trimmed, "```")
		if open == -1 {
			return trimmed
		}
		end := strings.Index(trimmed[open+3:], "```")
		if end == -1 {
			return trimmed
		}
		trimmed = trimmed[open : open+3+end+3]
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl != -1 && !strings.ContainsAny(trimmed[:nl], "{[") {
		// language tag such as "json"
		trimmed = trimmed[nl+1:]
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// ExtractJSONFromResponse extracts and parses JSON from an LLM response.
func ExtractJSONFromResponse[T any](response string) (T, error) {
	var result T
	jsonStr, err := extractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// ExtractJSON extracts the JSON portion from a response string.
// Returns the raw JSON string suitable for further processing.
func ExtractJSON(response string) (string, error) {
	return extractJSON(response)
}
