// Package normalize canonicalizes the device identifier fields that make up
// the composite alarm key.
package normalize

import "strings"

// Identifier returns the canonical string form of an identifier cell.
// Float-formatted integers lose their fractional part ("2.0" -> "2"); anything
// that is not a plain decimal numeral is returned unchanged.
func Identifier(v string) string {
	digits := strings.Replace(v, ".", "", 1)
	if digits == "" || !allDigits(digits) {
		return v
	}

	intPart := v
	if i := strings.IndexByte(v, '.'); i >= 0 {
		intPart = v[:i]
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		return "0"
	}
	return intPart
}

// CompositeKey builds the DEV-FN-SN-PN join key with every part normalized.
func CompositeKey(dev, fn, sn, pn string) string {
	return Identifier(dev) + "-" + Identifier(fn) + "-" + Identifier(sn) + "-" + Identifier(pn)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
