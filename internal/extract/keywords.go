package extract

import (
	"regexp"
	"strings"
)

// upiHandles is the closed set of known payment-provider suffixes. A handle
// outside this set is never treated as a UPI id.
var upiHandles = map[string]struct{}{
	"paytm":       {},
	"ybl":         {},
	"ibl":         {},
	"axl":         {},
	"apl":         {},
	"upi":         {},
	"okaxis":      {},
	"oksbi":       {},
	"okhdfcbank":  {},
	"okicici":     {},
	"okbizaxis":   {},
	"yapl":        {},
	"rbl":         {},
	"kotak":       {},
	"freecharge":  {},
	"airtel":      {},
	"jupiteraxis": {},
	"fam":         {},
}

// publicMailDomains distinguishes ordinary email addresses from payment
// handles. local@domain only counts as EMAIL when the domain is here.
var publicMailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"yahoo.in":       {},
	"yahoo.co.in":    {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"live.com":       {},
	"aol.com":        {},
	"icloud.com":     {},
	"protonmail.com": {},
	"proton.me":      {},
	"rediffmail.com": {},
	"zoho.com":       {},
	"mail.com":       {},
}

// KeywordCategory groups the fraud vocabulary by what the term signals.
type KeywordCategory string

const (
	CategoryUrgency  KeywordCategory = "urgency"
	CategoryIdentity KeywordCategory = "identity"
	CategoryThreat   KeywordCategory = "threat"
	CategoryReward   KeywordCategory = "reward"
)

// keywordVocabulary is the fixed fraud-indicative term list, matched
// case-insensitively on word boundaries.
var keywordVocabulary = map[string]KeywordCategory{
	"urgent":      CategoryUrgency,
	"immediately": CategoryUrgency,
	"expire":      CategoryUrgency,
	"expires":     CategoryUrgency,
	"today only":  CategoryUrgency,
	"act now":     CategoryUrgency,

	"verify":   CategoryIdentity,
	"kyc":      CategoryIdentity,
	"otp":      CategoryIdentity,
	"password": CategoryIdentity,
	"pin":      CategoryIdentity,
	"aadhaar":  CategoryIdentity,
	"pan card": CategoryIdentity,
	"confirm":  CategoryIdentity,
	"account":  CategoryIdentity,
	"bank":     CategoryIdentity,

	"blocked":   CategoryThreat,
	"suspended": CategoryThreat,
	"frozen":    CategoryThreat,
	"penalty":   CategoryThreat,
	"legal":     CategoryThreat,
	"police":    CategoryThreat,
	"arrest":    CategoryThreat,

	"prize":           CategoryReward,
	"winner":          CategoryReward,
	"lottery":         CategoryReward,
	"reward":          CategoryReward,
	"cashback":        CategoryReward,
	"congratulations": CategoryReward,
}

var keywordRes = buildKeywordRes()

func buildKeywordRes() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(keywordVocabulary))
	for term := range keywordVocabulary {
		res[term] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	}
	return res
}

// matchKeywords returns the vocabulary terms present in text, lowercased.
func matchKeywords(text string) []string {
	var found []string
	for term, re := range keywordRes {
		if re.MatchString(text) {
			found = append(found, strings.ToLower(term))
		}
	}
	return found
}

// CategoryOf returns the vocabulary category for a matched keyword.
func CategoryOf(keyword string) (KeywordCategory, bool) {
	cat, ok := keywordVocabulary[strings.ToLower(keyword)]
	return cat, ok
}
