package extract

import (
	"strings"
	"unicode/utf8"
)

const byteOrderMark = "\ufeff"

// extractPlain decodes text files. Invalid UTF-8 becomes U+FFFD, a leading byte order
// mark is dropped, and CRLF line endings become LF.
func extractPlain(content []byte) (string, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	text = strings.TrimPrefix(text, byteOrderMark)
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}
