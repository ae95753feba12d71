// Package model provides domain types shared across packages.
package model

import "encoding/json"

// Decision is one parsed reply from the model: either an action to take or
// a final answer.
type Decision struct {
	Thought     string  `json:"thought"`
	Action      *Action `json:"action,omitempty"`
	IsFinal     bool    `json:"is_final"`
	FinalAnswer *string `json:"final_answer,omitempty"`
}

// UnmarshalJSON accepts either a string or any JSON value for FinalAnswer.
// Non-string answers are pretty-printed.
func (d *Decision) UnmarshalJSON(data []byte) error {
	type decisionAlias Decision
	aux := &struct {
		FinalAnswer json.RawMessage `json:"final_answer,omitempty"`
		*decisionAlias
	}{
		decisionAlias: (*decisionAlias)(d),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.FinalAnswer) == 0 || string(aux.FinalAnswer) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(aux.FinalAnswer, &s); err == nil {
		d.FinalAnswer = &s
		return nil
	}

	var v interface{}
	if err := json.Unmarshal(aux.FinalAnswer, &v); err == nil {
		if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
			s := string(pretty)
			d.FinalAnswer = &s
		}
	}
	return nil
}

// Answer returns the final answer text, or "" when there is none.
func (d Decision) Answer() string {
	if d.FinalAnswer == nil {
		return ""
	}
	return *d.FinalAnswer
}

// Action names a tool and its raw JSON input.
type Action struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// Step represents a single iteration of the reasoning loop.
type Step struct {
	Iteration   int     `json:"iteration"`
	Thought     string  `json:"thought"`
	Action      *string `json:"action,omitempty"`
	Observation *string `json:"observation,omitempty"`
}

// ToolCall contains metrics about a tool invocation. Output text is not
// retained, only its size.
type ToolCall struct {
	Name       string `json:"name"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size"`
	DurationMs uint64 `json:"duration_ms"`
	Success    bool   `json:"success"`
	Status     string `json:"status"`
	ErrorKind  string `json:"error_kind,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
}
