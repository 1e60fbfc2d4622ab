package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

// UUIDs go first so the loose phone pattern cannot eat their digit groups.
var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// alwaysMasked headers are never logged, whatever the options say.
var alwaysMasked = []string{"Authorization", "Cookie", "Set-Cookie"}

// scrubber removes personal data from values headed for the logs. Bodies
// are never logged, so only query strings and headers pass through it.
type scrubber struct {
	masked map[string]struct{}
}

func newScrubber(extra []string) scrubber {
	s := scrubber{masked: make(map[string]struct{}, len(alwaysMasked)+len(extra))}
	for _, h := range append(append([]string(nil), alwaysMasked...), extra...) {
		if h = strings.TrimSpace(h); h != "" {
			s.masked[http.CanonicalHeaderKey(h)] = struct{}{}
		}
	}
	return s
}

// text replaces UUIDs, e-mail addresses and phone numbers in v.
func (s scrubber) text(v string) string {
	if v == "" {
		return v
	}
	v = uuidRE.ReplaceAllString(v, "[REDACTED:id]")
	v = emailRE.ReplaceAllString(v, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(v, "[REDACTED:phone]")
}

// headers flattens h, fully masking sensitive headers and scrubbing the rest.
func (s scrubber) headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := s.masked[http.CanonicalHeaderKey(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = s.text(strings.Join(vv, ", "))
	}
	return out
}
