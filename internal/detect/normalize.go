package detect

import (
	"regexp"
	"strings"
)

// UnknownMerchant is the normalized form assigned to events whose merchant
// text is empty or normalizes to nothing. Unknown-merchant events are never
// merged with each other or fuzzy-matched; each one stays its own group.
const UnknownMerchant = "unknown"

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// noiseTokens are legal suffixes, TLD fragments, and payment-processor filler
// that appear in raw merchant strings but carry no merchant identity.
var noiseTokens = map[string]bool{
	"inc": true, "llc": true, "ltd": true, "pvt": true, "co": true,
	"corp": true, "com": true, "net": true, "org": true, "www": true,
	"india": true, "in": true, "us": true, "usa": true, "uk": true,
	"payment": true, "payments": true, "pymt": true, "pmt": true,
	"recurring": true, "subscription": true, "autopay": true,
	"bill": true, "billing": true, "invoice": true, "inv": true,
}

// NormalizeMerchant canonicalizes raw merchant text into the identity key
// used for grouping and deduplication. The function is pure and
// deterministic: the same input always yields the same output, which is what
// makes the dedup key stable across scans.
func NormalizeMerchant(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return UnknownMerchant
	}

	s = nonAlphanumeric.ReplaceAllString(s, " ")

	var kept []string
	for _, tok := range strings.Fields(s) {
		if noiseTokens[tok] {
			continue
		}
		// Long digit runs are transaction ids embedded in descriptions,
		// not merchant identity.
		if len(tok) >= 4 && isDigits(tok) {
			continue
		}
		kept = append(kept, tok)
	}

	if len(kept) == 0 {
		return UnknownMerchant
	}
	return strings.Join(kept, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
