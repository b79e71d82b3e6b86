package gateway

import "strings"

// CanonicalizePhone folds every accepted phone shape into the digits-only,
// country-coded form the gateway requires. Inputs arrive as raw national
// numbers, full JIDs ("5522...@s.whatsapp.net") or prefixed local
// identifiers ("whatsapp_22..."). Idempotent: canonical input passes
// through unchanged.
func CanonicalizePhone(raw string) string {
	n := strings.TrimSpace(raw)
	n = strings.TrimPrefix(n, "whatsapp_")
	if i := strings.IndexByte(n, '@'); i >= 0 {
		n = n[:i]
	}
	n = strings.Map(keepDigit, n)
	n = strings.TrimPrefix(n, "55")
	return "55" + n
}

func keepDigit(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}
