package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/richinex/reasoner/model"
)

// ErrNoDecision is returned when a reply holds neither a usable action nor a
// final answer.
var ErrNoDecision = errors.New("reply contains no decision")

var decisionKeys = []string{"thought", "action", "is_final", "final_answer", "tool"}

var (
	reactFinal   = regexp.MustCompile(`(?is)final\s+answer\s*:\s*(.*)$`)
	reactAction  = regexp.MustCompile(`(?im)^[\s*]*action\s*:\s*(.+)$`)
	reactInput   = regexp.MustCompile(`(?is)action\s+input\s*:\s*(.*)$`)
	reactThought = regexp.MustCompile(`(?is)thought\s*:\s*(.*?)(?:\n[\s*]*(?:action|final\s+answer)\s*:|$)`)
	reactObserve = regexp.MustCompile(`(?i)\n\s*observation\s*:`)
)

// ParseDecision turns a model reply into a Decision. It accepts a JSON
// object (bare, fenced or embedded in prose) of the form
//
//	{"thought": "...", "action": {"tool": "...", "input": {...}}, "is_final": false, "final_answer": null}
//
// including the {"action": "tool", "action_input": ...} variant, and falls
// back to ReAct text with Thought:/Action:/Action Input:/Final Answer: lines.
func ParseDecision(reply string) (model.Decision, error) {
	if obj, err := extractJSON(reply); err == nil {
		if d, ok, err := decisionFromJSON(obj); ok {
			return d, err
		}
	}

	if d, ok, err := decisionFromReAct(reply); ok {
		return d, err
	}

	return model.Decision{}, fmt.Errorf("%w: %q", ErrNoDecision, preview(strings.TrimSpace(reply), previewLen))
}

func decisionFromJSON(obj string) (model.Decision, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return model.Decision{}, false, nil
	}
	if !hasAny(fields, decisionKeys) {
		return model.Decision{}, false, nil
	}

	var d model.Decision
	if raw, ok := fields["thought"]; ok {
		d.Thought = rawText(raw)
	}

	answer, hasAnswer := optionalText(fields["final_answer"])
	isFinal, err := flag(fields["is_final"])
	if err != nil {
		return model.Decision{}, true, err
	}

	action, err := actionFromFields(fields)
	if err != nil {
		return model.Decision{}, true, err
	}
	if action != nil && isFinalAnswerTool(action.Tool) {
		text := rawText(action.Input)
		answer, hasAnswer, action = text, true, nil
		isFinal = true
	}

	return finish(d, action, isFinal, answer, hasAnswer)
}

// actionFromFields reads the action in any of its accepted shapes.
func actionFromFields(fields map[string]json.RawMessage) (*model.Action, error) {
	raw, ok := fields["action"]
	if !ok || isNull(raw) {
		raw, ok = fields["tool"]
		if !ok || isNull(raw) {
			return nil, nil
		}
	}

	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "{"):
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: malformed action: %v", ErrNoDecision, err)
		}
		tool, _ := optionalText(firstOf(inner, "tool", "name"))
		return &model.Action{Tool: strings.TrimSpace(tool), Input: normalizeInput(firstOf(inner, "input", "arguments", "args"))}, nil
	case strings.HasPrefix(trimmed, `"`):
		tool := strings.TrimSpace(rawText(raw))
		if tool == "" {
			return nil, nil
		}
		return &model.Action{Tool: tool, Input: normalizeInput(firstOf(fields, "action_input", "input", "arguments"))}, nil
	default:
		return nil, fmt.Errorf("%w: action must be an object or a tool name", ErrNoDecision)
	}
}

func decisionFromReAct(reply string) (model.Decision, bool, error) {
	var d model.Decision
	if m := reactThought.FindStringSubmatch(reply); m != nil {
		d.Thought = strings.TrimSpace(m[1])
	}

	var action *model.Action
	if m := reactAction.FindStringSubmatch(reply); m != nil {
		tool := strings.Trim(strings.TrimSpace(m[1]), "`\"'*")
		input := ""
		if in := reactInput.FindStringSubmatch(reply); in != nil {
			input = in[1]
			if loc := reactObserve.FindStringIndex(input); loc != nil {
				input = input[:loc[0]]
			}
			if loc := reactFinal.FindStringIndex(input); loc != nil {
				input = input[:loc[0]]
			}
		}
		action = &model.Action{Tool: tool, Input: textInput(input)}
	}

	answer, hasAnswer := "", false
	if m := reactFinal.FindStringSubmatch(reply); m != nil {
		answer, hasAnswer = strings.TrimSpace(m[1]), true
	}

	if action == nil && !hasAnswer {
		return model.Decision{}, false, nil
	}
	if action != nil && hasAnswer {
		return model.Decision{}, true, fmt.Errorf("%w: reply has both an action and a final answer", ErrNoDecision)
	}
	return finish(d, action, hasAnswer, answer, hasAnswer)
}

// finish validates the pieces and assembles the decision.
func finish(d model.Decision, action *model.Action, isFinal bool, answer string, hasAnswer bool) (model.Decision, bool, error) {
	if isFinal || (hasAnswer && action == nil) {
		if !hasAnswer || strings.TrimSpace(answer) == "" {
			return model.Decision{}, true, fmt.Errorf("%w: final decision without a final_answer", ErrNoDecision)
		}
		d.IsFinal = true
		d.FinalAnswer = &answer
		return d, true, nil
	}
	if action == nil || action.Tool == "" {
		return model.Decision{}, true, fmt.Errorf("%w: no action and no final answer", ErrNoDecision)
	}
	d.Action = action
	return d, true, nil
}

func isFinalAnswerTool(tool string) bool {
	switch strings.ToLower(strings.TrimSpace(tool)) {
	case "final answer", "final_answer", "finish":
		return true
	}
	return false
}

// textInput converts ReAct action input text to JSON. Valid JSON passes
// through; anything else becomes a JSON string.
func textInput(text string) json.RawMessage {
	stripped := strings.Trim(stripMarkdownCodeBlocks(text), "`")
	stripped = strings.TrimSpace(stripped)
	if stripped == "" {
		return json.RawMessage("{}")
	}
	if strings.HasPrefix(stripped, "{") {
		if obj, ok := firstObject(stripped); ok {
			return json.RawMessage(obj)
		}
	}
	if json.Valid([]byte(stripped)) {
		return json.RawMessage(stripped)
	}
	encoded, _ := json.Marshal(stripped)
	return encoded
}

// flag reads is_final. Booleans, null and the strings "true"/"false" are
// accepted; anything else makes the reply unusable.
func flag(raw json.RawMessage) (bool, error) {
	if isNull(raw) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, nil
		case "false", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: is_final must be a boolean, got %s", ErrNoDecision, raw)
}

func normalizeInput(raw json.RawMessage) json.RawMessage {
	if isNull(raw) {
		return json.RawMessage("{}")
	}
	return raw
}

func hasAny(fields map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

func firstOf(fields map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if raw, ok := fields[k]; ok {
			return raw
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// optionalText returns the text of raw and whether it was present and
// non-null.
func optionalText(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	return rawText(raw), true
}

// rawText renders a JSON value as text: strings unquoted, anything else
// pretty-printed.
func rawText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err == nil {
		if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
			return string(pretty)
		}
	}
	return string(raw)
}
