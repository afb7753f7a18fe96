package bypass

import (
	"bytes"
	"net/http"
	"slices"
	"strings"
)

// Signature describes how one bot-protection vendor shows up in a response.
// A response matches when its status is listed and any of the header or
// body markers is present.
type Signature struct {
	Name     string
	Statuses []int
	// ServerHints are lower-case substrings of the Server header.
	ServerHints []string
	// Headers are header names whose mere presence is a match.
	Headers []string
	// BodyMarkers are byte substrings of the response body.
	BodyMarkers []string
	// AllMarkers requires every body marker instead of any.
	AllMarkers bool
}

// Response is the part of a fetched page the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DefaultSignatures covers the vendors article hosts are commonly fronted by,
// plus Naver's own captcha interstitial.
func DefaultSignatures() []Signature {
	return []Signature{
		{
			Name:        "Cloudflare",
			Statuses:    []int{http.StatusForbidden, http.StatusServiceUnavailable},
			ServerHints: []string{"cloudflare"},
			BodyMarkers: []string{"cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare"},
		},
		{
			Name:        "Akamai",
			Statuses:    []int{http.StatusForbidden},
			ServerHints: []string{"akamai"},
		},
		{
			Name:        "Akamai",
			Statuses:    []int{http.StatusForbidden},
			BodyMarkers: []string{"Reference #", "Access Denied"},
			AllMarkers:  true,
		},
		{
			Name:        "DataDome",
			Statuses:    []int{http.StatusForbidden},
			ServerHints: []string{"datadome"},
			Headers:     []string{"X-DataDome", "X-DataDome-Response"},
			BodyMarkers: []string{"geo.captcha-delivery.com", "datadome"},
		},
		{
			Name:        "PerimeterX",
			Statuses:    []int{http.StatusForbidden},
			Headers:     []string{"X-Px-Captcha"},
			BodyMarkers: []string{"client.perimeterx.net", "px-captcha", "_pxBlock"},
		},
		{
			Name:        "NaverCaptcha",
			Statuses:    []int{http.StatusOK, http.StatusForbidden, http.StatusTooManyRequests},
			BodyMarkers: []string{"ncaptcha", "captcha.naver.com"},
		},
	}
}

// Analyze reports whether res looks like a bot challenge, and which vendor.
func Analyze(res Response, sigs []Signature) (bool, string) {
	for _, sig := range sigs {
		if sig.match(res) {
			return true, sig.Name
		}
	}
	return false, ""
}

func (s Signature) match(res Response) bool {
	if len(s.Statuses) > 0 && !slices.Contains(s.Statuses, res.StatusCode) {
		return false
	}

	if len(s.ServerHints) > 0 {
		server := strings.ToLower(res.Header.Get("Server"))
		for _, hint := range s.ServerHints {
			if strings.Contains(server, hint) {
				return true
			}
		}
	}

	for _, h := range s.Headers {
		if res.Header.Get(h) != "" {
			return true
		}
	}

	if len(s.BodyMarkers) == 0 {
		return false
	}
	hits := 0
	for _, m := range s.BodyMarkers {
		if bytes.Contains(res.Body, []byte(m)) {
			if !s.AllMarkers {
				return true
			}
			hits++
		}
	}
	return s.AllMarkers && hits == len(s.BodyMarkers)
}
