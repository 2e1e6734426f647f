// Package blocking inspects fetched HTML for signs of anti-bot
// interference. Detection is pure: no I/O, no state.
package blocking

import "strings"

// protectedDomains are hosts known to serve interstitials well below
// the size of a real product page.
var protectedDomains = []string{
	"mercadolivre.com.br",
	"mercadolibre.com",
}

// phrases that only appear on challenge or denial pages. Matching is
// case-insensitive.
var phrases = []string{
	"robot or human",
	"are you a robot",
	"access denied",
	"request blocked",
	"captcha",
	"verifique que no eres un robot",
	"confirme que voce nao e um robo",
	"pardon our interruption",
	"unusual traffic",
	"temporarily blocked",
	"cloudflare",
	"attention required",
}

// Detection describes why content was judged blocked.
type Detection struct {
	Blocked    bool     `json:"blocked"`
	Indicators []string `json:"indicators,omitempty"`
}

// SizeFloorDefault is the minimum plausible size in characters of a
// fully rendered product page on a protected domain.
const SizeFloorDefault = 100000

// IsProtectedDomain reports whether the URL's host carries the size
// floor heuristic.
func IsProtectedDomain(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, d := range protectedDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// Inspect checks html fetched from rawURL against the phrase list and,
// on protected domains, the size floor. Indicators preserve the order
// in which checks matched.
func Inspect(rawURL, html string, sizeFloor int) Detection {
	if sizeFloor <= 0 {
		sizeFloor = SizeFloorDefault
	}

	var indicators []string
	if IsProtectedDomain(rawURL) && len(html) < sizeFloor {
		indicators = append(indicators, "undersized_response")
	}

	lower := strings.ToLower(html)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			indicators = append(indicators, "phrase:"+p)
		}
	}

	return Detection{Blocked: len(indicators) > 0, Indicators: indicators}
}
