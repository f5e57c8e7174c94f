package transcript

import "strings"

// Normalize converts CRLF line endings to LF. LF-only input is returned
// unchanged. This runs once per file, before the line-oriented parser
// ever sees the content, so the parser itself never has to special-case
// a trailing \r.
func Normalize(data []byte) []byte {
	if !containsCR(data) {
		return data
	}
	return []byte(strings.ReplaceAll(string(data), "\r\n", "\n"))
}

func containsCR(data []byte) bool {
	for _, b := range data {
		if b == '\r' {
			return true
		}
	}
	return false
}
