package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Kind identifies a category of extracted artifact.
type Kind string

const (
	KindUPI     Kind = "UPI_ID"
	KindPhone   Kind = "PHONE"
	KindURL     Kind = "URL"
	KindBank    Kind = "BANK_ACCOUNT"
	KindEmail   Kind = "EMAIL"
	KindKeyword Kind = "KEYWORD"
)

// Set holds deduplicated artifact values grouped by kind.
type Set map[Kind]map[string]struct{}

func NewSet() Set {
	return make(Set)
}

func (s Set) Add(kind Kind, value string) {
	if value == "" {
		return
	}
	if s[kind] == nil {
		s[kind] = make(map[string]struct{})
	}
	s[kind][value] = struct{}{}
}

func (s Set) Has(kind Kind, value string) bool {
	_, ok := s[kind][value]
	return ok
}

// Merge unions other into s. Values are never removed.
func (s Set) Merge(other Set) {
	for kind, values := range other {
		for v := range values {
			s.Add(kind, v)
		}
	}
}

// Values returns the sorted values for a kind. Never nil.
func (s Set) Values(kind Kind) []string {
	out := make([]string, 0, len(s[kind]))
	for v := range s[kind] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s Set) Count() int {
	n := 0
	for _, values := range s {
		n += len(values)
	}
	return n
}

// HandleCount counts concrete contact/payment artifacts, excluding keywords.
func (s Set) HandleCount() int {
	return s.Count() - len(s[KindKeyword])
}

// rule is one entry in the ordered matcher table. Higher priority wins when
// spans overlap; ties go to the longer match.
type rule struct {
	kind     Kind
	re       *regexp.Regexp
	priority int
	// digitRun matches must not be a slice of a longer numeric token.
	digitRun bool
	// normalize canonicalizes the raw match and may reject it by returning "".
	normalize func(string) string
}

var (
	handleRe = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9._-]*@[a-z0-9.-]+\b`)
	urlRe    = regexp.MustCompile(`https?://[^\s<>"]+`)
	phoneRe  = regexp.MustCompile(`(?:\+\s?)?\d[\d\s-]{8,16}\d`)
	digitsRe = regexp.MustCompile(`\D+`)
)

var rules = []rule{
	{kind: KindUPI, re: handleRe, priority: 5, normalize: normalizeUPI},
	{kind: KindEmail, re: handleRe, priority: 4, normalize: normalizeEmail},
	{kind: KindURL, re: urlRe, priority: 3, normalize: normalizeURL},
	{kind: KindBank, re: phoneRe, priority: 2, digitRun: true, normalize: normalizeBank},
	{kind: KindPhone, re: phoneRe, priority: 1, digitRun: true, normalize: normalizePhone},
}

type span struct {
	kind     Kind
	start    int
	end      int
	value    string
	priority int
}

// Extract parses free text into a deduplicated artifact set. It is pure and
// never fails: malformed or empty input yields an empty set.
func Extract(text string) Set {
	result := NewSet()
	if text == "" {
		return result
	}

	var candidates []span
	for _, r := range rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			if r.digitRun && insideLongerRun(text, loc[0], loc[1]) {
				continue
			}
			raw := text[loc[0]:loc[1]]
			value := r.normalize(raw)
			if value == "" {
				continue
			}
			candidates = append(candidates, span{
				kind:     r.kind,
				start:    loc[0],
				end:      loc[1],
				value:    value,
				priority: r.priority,
			})
		}
	}

	// Highest priority first, then longest match, then position.
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if al, bl := a.end-a.start, b.end-b.start; al != bl {
			return al > bl
		}
		return a.start < b.start
	})

	var accepted []span
	for _, c := range candidates {
		if overlapsAny(c, accepted) {
			continue
		}
		accepted = append(accepted, c)
		result.Add(c.kind, c.value)
	}

	for _, kw := range matchKeywords(text) {
		result.Add(KindKeyword, kw)
	}

	return result
}

func insideLongerRun(text string, start, end int) bool {
	if start > 0 && isDigit(text[start-1]) {
		return true
	}
	if end < len(text) && isDigit(text[end]) {
		return true
	}
	return false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func overlapsAny(c span, accepted []span) bool {
	for _, a := range accepted {
		if c.start < a.end && a.start < c.end {
			return true
		}
	}
	return false
}

func normalizeUPI(raw string) string {
	lower := strings.ToLower(raw)
	at := strings.LastIndexByte(lower, '@')
	if at < 1 {
		return ""
	}
	if _, ok := upiHandles[lower[at+1:]]; !ok {
		return ""
	}
	return lower
}

func normalizeEmail(raw string) string {
	lower := strings.ToLower(raw)
	at := strings.LastIndexByte(lower, '@')
	if at < 1 {
		return ""
	}
	if _, ok := publicMailDomains[lower[at+1:]]; !ok {
		return ""
	}
	return lower
}

func normalizeURL(raw string) string {
	return strings.TrimRight(raw, `.,;:!?)]}'"`)
}

// normalizePhone collapses separators and country-code variants to the
// canonical bare 10-digit form. Rejects anything that is not an Indian
// mobile number.
func normalizePhone(raw string) string {
	digits := digitsRe.ReplaceAllString(raw, "")
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return ""
	}
	if digits[0] < '6' || digits[0] > '9' {
		return ""
	}
	return digits
}

// normalizeBank accepts contiguous digit runs of account-number length that
// do not collapse to a valid phone number.
func normalizeBank(raw string) string {
	if strings.ContainsAny(raw, " -+") {
		return "" // separated runs are phone candidates, not account numbers
	}
	if len(raw) < 11 || len(raw) > 18 {
		return ""
	}
	if normalizePhone(raw) != "" {
		return ""
	}
	return raw
}
