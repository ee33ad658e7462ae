package storage

import "regexp"

// Exchange prefixes by code pattern.
var exchangePatterns = []struct {
	prefix string
	re     *regexp.Regexp
}{
	{"BJ", regexp.MustCompile(`^(82|83|87|88|920)`)},
	{"SH", regexp.MustCompile(`^(60|601|603|605|688)`)},
	{"SZ", regexp.MustCompile(`^(000|001|002|003|004|300|301)`)},
}

// ExchangePrefix classifies an A-share code as SH, SZ or BJ. Unknown codes
// return "".
func ExchangePrefix(code string) string {
	for _, p := range exchangePatterns {
		if p.re.MatchString(code) {
			return p.prefix
		}
	}
	return ""
}
