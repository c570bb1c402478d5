package hypertext

import "golang.org/x/text/unicode/norm"

// nfc normalizes s to Unicode Normalization Form C before interning, so
// visually-identical text typed with different Unicode decompositions
// always canonicalizes to the same bytes and dedupes correctly.
func nfc(s string) string {
	return norm.NFC.String(s)
}
