package speech

import (
	"strconv"
	"strings"
)

// LineText is what gets said for a line. Blank lines and lines whose text is
// unknown are announced by their one-based number.
func LineText(text string, line uint32, known bool) string {
	number := strconv.FormatUint(uint64(line)+1, 10)
	if !known {
		return "line " + number
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "blank line " + number
	}
	return text
}
