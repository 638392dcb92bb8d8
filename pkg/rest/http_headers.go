package rest

import (
	"net/http"
	"strings"
)

// Prefer holds preferences from the Prefer header (RFC 7240).
type Prefer struct {
	Return string // "minimal", "representation"
	Count  string // "exact"
}

// parsePrefer parses the Prefer header according to RFC 7240.
// It returns nil if the header is not present. Unsupported preferences are ignored.
func parsePrefer(r *http.Request) *Prefer {
	headers := r.Header.Values("Prefer")
	if len(headers) == 0 {
		return nil
	}

	p := &Prefer{
		Return: "minimal", // RFC 7240 default behavior
	}

	for _, header := range headers {
		parseKeyValPairs(header, func(key, value string) {
			value = strings.ToLower(value)
			switch key {
			case "return":
				if isValidReturn(value) {
					p.Return = value
				}
			case "count":
				if value == "exact" {
					p.Count = value
				}
			}
		})
	}

	return p
}

// parseKeyValPairs parses comma-separated preference directives.
// For each key=value pair found, it calls fn with the key and value.
func parseKeyValPairs(header string, fn func(key, value string)) {
	for pref := range strings.SplitSeq(header, ",") {
		pref = strings.TrimSpace(pref)
		if key, value, found := strings.Cut(pref, "="); found {
			key = strings.TrimSpace(strings.ToLower(key))
			value = strings.Trim(strings.TrimSpace(value), `"`)
			fn(key, value)
		}
	}
}

func isValidReturn(s string) bool {
	switch s {
	case "minimal", "representation":
		return true
	}
	return false
}

// WantsRepresentation reports whether the client asked for the written row's identity.
func (p *Prefer) WantsRepresentation() bool {
	return p != nil && p.Return == "representation"
}

// WantsCountExact reports whether the client wants the affected row count.
func (p *Prefer) WantsCountExact() bool {
	return p != nil && p.Count == "exact"
}
