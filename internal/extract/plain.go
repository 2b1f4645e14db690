package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodePlain returns text content as UTF-8. A UTF-16 byte order mark
// switches decoding to UTF-16 and a UTF-8 mark is dropped. Invalid
// sequences become U+FFFD and CRLF line endings are folded to LF.
func decodePlain(content []byte) string {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), content)
	if err != nil {
		out = content
	}
	s := string(out)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	return strings.ReplaceAll(s, "\r\n", "\n")
}
