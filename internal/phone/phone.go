// Package phone classifies raw phone strings into E.164 form plus
// country and carrier metadata, driven entirely by the tables in
// tables.go. Classification is a pure function: no I/O, never panics.
package phone

import (
	"strings"
)

const (
	minNormalizedLen = 10 // including the leading '+'
	maxNormalizedLen = 16
)

// Classification is the result of classifying one raw input.
type Classification struct {
	Valid      bool     `json:"valid"`
	Raw        string   `json:"raw"`
	Normalized string   `json:"normalized,omitempty"`
	Country    string   `json:"country,omitempty"` // ISO alpha-2
	Network    string   `json:"network,omitempty"`
	Operator   string   `json:"operator,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// Classify normalizes raw to E.164 and detects country and carrier.
// Local-format numbers (leading 0) are resolved by matching the
// remaining digit count against the coverage table in declaration order;
// the first match wins. Bare numbers that match nothing are assumed
// international with the country left undetermined.
func Classify(raw string) Classification {
	c := Classification{Raw: raw}

	sanitized := sanitize(raw)
	if sanitized == "" || sanitized == "+" {
		c.Errors = append(c.Errors, "no digits in input")
		return c
	}

	switch {
	case strings.HasPrefix(sanitized, "+"):
		c.Normalized = sanitized
	case strings.HasPrefix(sanitized, "0"):
		local := strings.TrimLeft(sanitized, "0")
		if country := matchLocalLength(len(local)); country != nil {
			c.Normalized = "+" + country.CallingCode + local
		} else {
			c.Normalized = "+" + local
			c.Warnings = append(c.Warnings, "assumed international, country undetermined")
		}
	default:
		if country := matchCallingCodePrefix(sanitized); country != nil {
			c.Normalized = "+" + sanitized
		} else if country := matchLocalLength(len(sanitized)); country != nil {
			c.Normalized = "+" + country.CallingCode + sanitized
		} else {
			c.Normalized = "+" + sanitized
			c.Warnings = append(c.Warnings, "assumed international, country undetermined")
		}
	}

	if len(c.Normalized) < minNormalizedLen || len(c.Normalized) > maxNormalizedLen {
		c.Errors = append(c.Errors, "normalized number length out of range")
		c.Normalized = ""
		return c
	}

	c.Valid = true
	detect(&c)
	return c
}

// sanitize strips everything except digits and one leading '+'.
func sanitize(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// detect fills country/network/operator from the normalized form.
func detect(c *Classification) {
	digits := strings.TrimPrefix(c.Normalized, "+")

	country := findByCallingCode(countries, digits)
	if country == nil {
		if intl := findByCallingCode(internationalCodes, digits); intl != nil {
			c.Country = intl.ISO
			c.Warnings = append(c.Warnings, "destination outside African coverage")
			return
		}
		c.Warnings = append(c.Warnings, "country undetermined")
		return
	}

	c.Country = country.ISO
	subscriber := digits[len(country.CallingCode):]
	if net := matchNetwork(country, subscriber); net != nil {
		c.Network = net.Code
		c.Operator = net.Operator
	}
}

// matchLocalLength returns the first table entry whose expected local
// length equals n. Multiple countries can share a length; the ambiguity
// is resolved by table order.
func matchLocalLength(n int) *Country {
	for i := range countries {
		if countries[i].LocalLength == n {
			return &countries[i]
		}
	}
	return nil
}

// matchCallingCodePrefix returns a coverage-table country whose calling
// code starts the digit string and whose local length fits the rest.
func matchCallingCodePrefix(digits string) *Country {
	for i := range countries {
		cc := countries[i].CallingCode
		if strings.HasPrefix(digits, cc) && len(digits)-len(cc) == countries[i].LocalLength {
			return &countries[i]
		}
	}
	return nil
}

// findByCallingCode picks the longest calling-code match from a table.
func findByCallingCode(table []Country, digits string) *Country {
	var best *Country
	for i := range table {
		cc := table[i].CallingCode
		if strings.HasPrefix(digits, cc) {
			if best == nil || len(cc) > len(best.CallingCode) {
				best = &table[i]
			}
		}
	}
	return best
}

// matchNetwork matches the subscriber number against the country's
// carrier blocks, longest prefix first.
func matchNetwork(country *Country, subscriber string) *Network {
	var best *Network
	bestLen := 0
	for i := range country.Networks {
		for _, p := range country.Networks[i].Prefixes {
			if strings.HasPrefix(subscriber, p) && len(p) > bestLen {
				best = &country.Networks[i]
				bestLen = len(p)
			}
		}
	}
	return best
}
