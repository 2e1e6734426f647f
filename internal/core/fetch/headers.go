package fetch

import (
	"math/rand"
	"net/http"
)

// Profile is an immutable set of request headers mimicking a real
// browser. Callers receive copies; the pool itself is never mutated
// after construction.
type Profile struct {
	UserAgent string
	headers   map[string]string
}

// Apply copies the profile's headers onto the request.
func (p Profile) Apply(req *http.Request) {
	req.Header.Set("User-Agent", p.UserAgent)
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
}

// ProfilePool holds a fixed set of browser header profiles.
type ProfilePool struct {
	profiles []Profile
}

// NewProfilePool builds the default pool of desktop Chrome and Firefox
// profiles tuned for pt-BR content.
func NewProfilePool() *ProfilePool {
	common := map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
		"Accept-Encoding":           "gzip, deflate, br",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
	}

	chromeHeaders := func(uaHint string) map[string]string {
		h := make(map[string]string, len(common)+3)
		for k, v := range common {
			h[k] = v
		}
		h["sec-ch-ua"] = uaHint
		h["sec-ch-ua-mobile"] = "?0"
		h["sec-ch-ua-platform"] = `"Windows"`
		return h
	}

	firefoxHeaders := func() map[string]string {
		h := make(map[string]string, len(common))
		for k, v := range common {
			h[k] = v
		}
		return h
	}

	return &ProfilePool{profiles: []Profile{
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			headers:   chromeHeaders(`"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`),
		},
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
			headers:   chromeHeaders(`"Not/A)Brand";v="8", "Chromium";v="125", "Google Chrome";v="125"`),
		},
		{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			headers:   chromeHeaders(`"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`),
		},
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
			headers:   firefoxHeaders(),
		},
	}}
}

// Pick returns a random profile from the pool.
func (pp *ProfilePool) Pick() Profile {
	return pp.profiles[rand.Intn(len(pp.profiles))]
}

// Size returns the number of profiles in the pool.
func (pp *ProfilePool) Size() int {
	return len(pp.profiles)
}
