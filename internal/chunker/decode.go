package chunker

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decode turns raw file bytes into text. UTF-8 is tried first, then
// Windows-1252 as the regional fallback. Content with NUL bytes is treated
// as undecodable regardless of encoding.
func decode(raw []byte) (string, bool) {
	if len(raw) == 0 {
		return "", true
	}
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", false
	}
	if utf8.Valid(raw) {
		return string(raw), true
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}
