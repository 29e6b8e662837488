package guard

import "strings"

var deviceTerms = []string{
	"phone", "mobile", "smartphone", "device", "handset",
	"galaxy", "iphone", "redmi", "poco", "realme", "oneplus",
	"vivo", "oppo", "motorola", "nokia", "asus", "tecno", "infinix",
}

var specTerms = []string{
	"spec", "feature", "model",
	"camera", "battery", "display", "screen", "charging", "price",
}

// KeywordFallback reports whether the message mentions a device, brand or
// spec term. Matching is a plain lowercase substring test.
func KeywordFallback(message string) bool {
	lower := strings.ToLower(message)
	for _, terms := range [][]string{deviceTerms, specTerms} {
		for _, t := range terms {
			if strings.Contains(lower, t) {
				return true
			}
		}
	}
	return false
}
