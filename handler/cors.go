package handler

import "strings"

var (
	corsMethods = []string{"GET", "POST", "OPTIONS"}
	corsHeaders = []string{"Accept", "Content-Type", headerSessionID, headerCorrelationID}
	corsExposed = []string{headerSessionID, headerCorrelationID}
)

const corsMaxAge = 300

// corsPolicy sets CORS headers on Lambda responses. The HTTP router uses
// go-chi/cors with the same origins, methods and headers.
type corsPolicy struct {
	any     bool
	origins map[string]struct{}
	list    []string
}

func newCORSPolicy(origins []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			p.any = true
		}
		p.origins[o] = struct{}{}
		p.list = append(p.list, o)
	}
	if len(p.list) == 0 {
		p.any = true
		p.list = []string{"*"}
	}
	return p
}

func (p corsPolicy) allowedOrigins() []string {
	return append([]string(nil), p.list...)
}

func (p corsPolicy) apply(headers map[string]string, origin string) {
	switch {
	case p.any:
		headers["Access-Control-Allow-Origin"] = "*"
	case origin != "":
		if _, ok := p.origins[origin]; !ok {
			return
		}
		headers["Access-Control-Allow-Origin"] = origin
		headers["Vary"] = "Origin"
	default:
		return
	}
	headers["Access-Control-Allow-Methods"] = strings.Join(corsMethods, ", ")
	headers["Access-Control-Allow-Headers"] = strings.Join(corsHeaders, ", ")
	headers["Access-Control-Expose-Headers"] = strings.Join(corsExposed, ", ")
}

// ParseOrigins splits a comma separated ALLOWED_ORIGINS value.
func ParseOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
