package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Accepted spellings for each argument. The first entry is the canonical
// name shown in the tool schema.
var (
	nameKeys    = []string{"name", "filename", "path", "file"}
	contentKeys = []string{"content", "code", "text", "data"}
	argsKeys    = []string{"args", "arguments", "argv"}
)

type writeArgs struct {
	Name    string
	Content string
}

type runArgs struct {
	Name string
	Args []string
}

type readArgs struct {
	Name string
}

// rawArgs is a decoded tool input: either an object of fields or a bare
// string such as "hello.py".
type rawArgs struct {
	fields map[string]json.RawMessage
	bare   string
	isBare bool
}

func decodeArgs(input json.RawMessage) (rawArgs, error) {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return rawArgs{fields: map[string]json.RawMessage{}}, nil
	}

	switch trimmed[0] {
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return rawArgs{}, fmt.Errorf("%w: input is not a valid JSON object: %v", ErrBadArguments, err)
		}
		return rawArgs{fields: fields}, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return rawArgs{}, fmt.Errorf("%w: %v", ErrBadArguments, err)
		}
		// Some models double-encode the object as a string.
		inner := strings.TrimSpace(s)
		if strings.HasPrefix(inner, "{") {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal([]byte(inner), &fields); err == nil {
				return rawArgs{fields: fields}, nil
			}
		}
		return rawArgs{bare: s, isBare: true}, nil
	default:
		return rawArgs{}, fmt.Errorf("%w: input must be a JSON object", ErrBadArguments)
	}
}

// scalar returns the value of the first present key as a string. Numbers and
// booleans are stringified.
func (a rawArgs) scalar(keys []string) (string, bool, error) {
	for _, key := range keys {
		raw, ok := a.fields[key]
		if !ok {
			continue
		}
		s, err := scalarString(raw)
		if err != nil {
			return "", false, fmt.Errorf("%w: %q %v", ErrBadArguments, key, err)
		}
		return s, true, nil
	}
	return "", false, nil
}

func (a rawArgs) required(keys []string) (string, error) {
	s, ok, err := a.scalar(keys)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: missing required argument %q", ErrBadArguments, keys[0])
	}
	return s, nil
}

func scalarString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("is null")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("must be a string or number")
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err == nil {
			return n.String(), nil
		}
		var b bool
		if err := json.Unmarshal(trimmed, &b); err == nil {
			return fmt.Sprintf("%t", b), nil
		}
		return "", fmt.Errorf("must be a string or number")
	}
}

func parseWriteArgs(input json.RawMessage) (writeArgs, error) {
	raw, err := decodeArgs(input)
	if err != nil {
		return writeArgs{}, err
	}
	if raw.isBare {
		return writeArgs{}, fmt.Errorf("%w: expected an object with %q and %q", ErrBadArguments, nameKeys[0], contentKeys[0])
	}

	name, err := raw.required(nameKeys)
	if err != nil {
		return writeArgs{}, err
	}
	content, err := raw.required(contentKeys)
	if err != nil {
		return writeArgs{}, err
	}
	return writeArgs{Name: name, Content: content}, nil
}

func parseReadArgs(input json.RawMessage) (readArgs, error) {
	raw, err := decodeArgs(input)
	if err != nil {
		return readArgs{}, err
	}
	if raw.isBare {
		return readArgs{Name: strings.TrimSpace(raw.bare)}, nil
	}
	name, err := raw.required(nameKeys)
	if err != nil {
		return readArgs{}, err
	}
	return readArgs{Name: name}, nil
}

// parseRunArgs accepts {"name": "x.py", "args": [...]}, {"name": "x.py",
// "args": "--n 3"}, {"name": "x.py --n 3"} and the bare string "x.py --n 3".
func parseRunArgs(input json.RawMessage) (runArgs, error) {
	raw, err := decodeArgs(input)
	if err != nil {
		return runArgs{}, err
	}

	var cmdline string
	var extra []string
	if raw.isBare {
		cmdline = raw.bare
	} else {
		cmdline, err = raw.required(nameKeys)
		if err != nil {
			return runArgs{}, err
		}
		extra, err = raw.argList()
		if err != nil {
			return runArgs{}, err
		}
	}

	parts, err := shlex.Split(cmdline)
	if err != nil {
		return runArgs{}, fmt.Errorf("%w: cannot split %q: %v", ErrBadArguments, cmdline, err)
	}
	if len(parts) == 0 {
		return runArgs{}, fmt.Errorf("%w: script name cannot be empty", ErrBadArguments)
	}

	args := append(parts[1:], extra...)
	return runArgs{Name: parts[0], Args: args}, nil
}

// argList reads the optional argument list, given either as a JSON array
// of scalars or as one shell-quoted string.
func (a rawArgs) argList() ([]string, error) {
	for _, key := range argsKeys {
		raw, ok := a.fields[key]
		if !ok {
			continue
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return nil, nil
		}
		if trimmed[0] == '[' {
			var items []json.RawMessage
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return nil, fmt.Errorf("%w: %q %v", ErrBadArguments, key, err)
			}
			args := make([]string, 0, len(items))
			for i, item := range items {
				s, err := scalarString(item)
				if err != nil {
					return nil, fmt.Errorf("%w: %q[%d] %v", ErrBadArguments, key, i, err)
				}
				args = append(args, s)
			}
			return args, nil
		}

		s, err := scalarString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %q %v", ErrBadArguments, key, err)
		}
		args, err := shlex.Split(s)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot split %q: %v", ErrBadArguments, s, err)
		}
		return args, nil
	}
	return nil, nil
}
