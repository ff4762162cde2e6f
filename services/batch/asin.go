package batch

import (
	"strings"

	"github.com/arbitragevault/backend/utils"
)

// ParseASINs splits raw user input into well-formed ASINs and rejects.
// Input may be separated by whitespace, commas or newlines. ASINs are
// uppercased and deduplicated preserving first-seen order.
func ParseASINs(raw string) (valid []string, invalid []string) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		asin := strings.ToUpper(strings.TrimSpace(f))
		if asin == "" {
			continue
		}
		if _, dup := seen[asin]; dup {
			continue
		}
		seen[asin] = struct{}{}

		if utils.IsValidASIN(asin) {
			valid = append(valid, asin)
		} else {
			invalid = append(invalid, asin)
		}
	}
	return valid, invalid
}
