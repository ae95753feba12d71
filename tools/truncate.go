package tools

import "fmt"

// Truncate bounds s to roughly max characters, keeping the head and tail
// and marking the cut. It reports whether anything was removed.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s, false
	}

	head := max / 2
	tail := max - head
	dropped := len(runes) - head - tail
	return fmt.Sprintf("%s\n\n...[TRUNCATED %d chars]...\n\n%s",
		string(runes[:head]), dropped, string(runes[len(runes)-tail:])), true
}
