package inference

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const maxASCII = 0x7f

// normalizeBody strips a byte order mark and replaces invalid UTF-8 with U+FFFD.
// With legacyASCII every non-ASCII rune is dropped as well, which is what one of
// the old dashboards did before parsing; it also drops legitimate non-Latin text.
func normalizeBody(body []byte, legacyASCII bool) ([]byte, error) {
	var t transform.Transformer = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	if legacyASCII {
		t = transform.Chain(t, runes.Remove(runes.Predicate(func(r rune) bool { return r > maxASCII })))
	}
	out, _, err := transform.Bytes(t, body)
	if err != nil {
		return nil, err
	}
	return out, nil
}
