// Package sources loads project context from files: it extracts text, splits it into
// paragraphs, and ingests each paragraph as a context document. A watcher keeps the
// collection in step with configured directories.
package sources

import (
	"regexp"
	"strings"

	"github.com/hyperjump/pmagent/pkg/utils"
)

// DefaultMaxParagraphWords caps paragraph length when the caller passes 0.
const DefaultMaxParagraphWords = 200

var blankLine = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// Split breaks text into paragraphs at blank lines. Whitespace inside a paragraph is
// collapsed and empty paragraphs are dropped. Paragraphs longer than maxWords are cut
// into consecutive windows of maxWords words.
func Split(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxParagraphWords
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range blankLine.Split(text, -1) {
		words := strings.Fields(block)
		if len(words) == 0 {
			continue
		}
		if len(words) <= maxWords {
			out = append(out, utils.CollapseWhitespace(block))
			continue
		}
		for i := 0; i < len(words); i += maxWords {
			end := i + maxWords
			if end > len(words) {
				end = len(words)
			}
			out = append(out, strings.Join(words[i:end], " "))
		}
	}
	return out
}
