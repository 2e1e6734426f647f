// Package urls canonicalizes Mercado Livre product URLs: domain
// validation, MLB identifier extraction, tracking-redirect resolution
// and normalization into the canonical product form.
package urls

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const canonicalHost = "produto.mercadolivre.com.br"

// allowedSuffixes covers the site's storefront domains plus the
// tracking subdomains that redirect into product pages.
var allowedSuffixes = []string{
	"mercadolivre.com.br",
	"mercadolibre.com",
}

// idPatterns are tried in order. The specific prefixed forms must come
// before the bare numeric run, otherwise any long number in a path
// (a campaign id, a timestamp) would be mistaken for a product id.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`MLB-(\d{6,})`),
	regexp.MustCompile(`MLB(\d{6,})`),
}

var bareNumericRun = regexp.MustCompile(`\b(\d{8,})\b`)

// idQueryParams are query parameters known to carry the product id on
// tracking and share links.
var idQueryParams = []string{"item_id", "wid", "itemId"}

// Validate reports whether the URL's host belongs to the supported
// site, including its tracking subdomains.
func Validate(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range allowedSuffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// IsTracking reports whether the URL points at one of the site's
// click-tracking subdomains rather than a product or listing page.
func IsTracking(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if !Validate(raw) {
		return false
	}
	return strings.HasPrefix(host, "click") || strings.HasPrefix(host, "mclics")
}

// ExtractProductID returns the canonical MLB identifier for the URL.
// Patterns are applied most-specific first; the bare numeric run is a
// last resort and only consulted on the path, never the query string.
func ExtractProductID(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	for _, re := range idPatterns {
		if m := re.FindStringSubmatch(u.Path); m != nil {
			return "MLB" + m[1], true
		}
	}

	q := u.Query()
	for _, param := range idQueryParams {
		v := q.Get(param)
		if v == "" {
			continue
		}
		for _, re := range idPatterns {
			if m := re.FindStringSubmatch(v); m != nil {
				return "MLB" + m[1], true
			}
		}
		if m := bareNumericRun.FindStringSubmatch(v); m != nil {
			return "MLB" + m[1], true
		}
	}

	if m := bareNumericRun.FindStringSubmatch(u.Path); m != nil {
		return "MLB" + m[1], true
	}
	return "", false
}

// ResolveRedirects follows Location headers with HEAD probes up to
// maxHops, resolving relative locations against the current URL. It
// never fails: on any I/O error or when hops run out it returns the
// last URL it reached.
func ResolveRedirects(ctx context.Context, client *http.Client, raw string, maxHops int) string {
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if maxHops <= 0 {
		maxHops = 5
	}

	current := raw
	for hop := 0; hop < maxHops; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
		if err != nil {
			return current
		}
		resp, err := client.Do(req)
		if err != nil {
			return current
		}
		loc := resp.Header.Get("Location")
		status := resp.StatusCode
		resp.Body.Close()

		if status < 300 || status >= 400 || loc == "" {
			return current
		}
		base, err := url.Parse(current)
		if err != nil {
			return current
		}
		next, err := base.Parse(loc)
		if err != nil {
			return current
		}
		current = next.String()
	}
	return current
}

// Normalize rebuilds the canonical product URL for raw. The result is
// stable: normalizing an already canonical URL returns it unchanged.
func Normalize(raw string) (string, bool) {
	if !Validate(raw) {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if strings.EqualFold(u.Hostname(), canonicalHost) {
		if m := idPatterns[0].FindStringSubmatch(u.Path); m != nil && strings.HasPrefix(u.Path, "/MLB-") {
			return raw, true
		}
	}
	id, ok := ExtractProductID(raw)
	if !ok {
		return "", false
	}
	return "https://" + canonicalHost + "/MLB-" + strings.TrimPrefix(id, "MLB"), true
}

// IsAcceptableProductURL accepts URLs with an extractable id, and also
// tracking URLs without one: those may still resolve to a product once
// the orchestrator probes their redirect chain, so rejecting them here
// would produce false negatives.
func IsAcceptableProductURL(raw string) bool {
	if !Validate(raw) {
		return false
	}
	if _, ok := ExtractProductID(raw); ok {
		return true
	}
	return IsTracking(raw)
}
