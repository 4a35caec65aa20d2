package corpus

import (
	"strings"

	"github.com/dlclark/regexp2"
)

var extraWhiteSpace = regexp2.MustCompile(`\s+`, regexp2.None)

// SanitizeText cleans up whitespace in scraped text: Windows `\r` is
// dropped, escaped `\n` becomes a newline, runs of blank lines collapse to
// one newline, and each line has its inner whitespace collapsed to single
// spaces and its ends trimmed.
func SanitizeText(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\\n", "\n")
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		collapsed, err := extraWhiteSpace.Replace(line, " ", -1, -1)
		if err != nil {
			collapsed = line
		}
		line = strings.TrimSpace(collapsed)
		if line == "" && len(kept) > 0 && kept[len(kept)-1] == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
