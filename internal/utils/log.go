package utils

import (
	"strconv"
	"strings"
)

// TruncateForLog flattens s onto one line and cuts it to limit runes. A cut
// value ends with the number of runes dropped so log readers know how much
// of a prompt or response is missing.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit]) + "... (+" + strconv.Itoa(len(runes)-limit) + " chars)"
}
