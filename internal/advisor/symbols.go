package advisor

import (
	"regexp"
	"strings"

	"github.com/fzheng/SigmaPilot/internal/domain"
)

var addressPattern = regexp.MustCompile(`0x[0-9a-fA-F]{6,40}`)

// ExtractAssets scans the user message for mentions of supported assets.
// Returns deduplicated uppercase symbols in mention order.
func ExtractAssets(text string) []string {
	upper := strings.ToUpper(text)
	words := strings.FieldsFunc(upper, func(r rune) bool {
		return !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	})

	seen := make(map[string]bool)
	var result []string
	for _, w := range words {
		if domain.IsSupportedAsset(w) && !seen[w] {
			seen[w] = true
			result = append(result, w)
		}
	}
	return result
}

// ExtractAddresses pulls hex wallet addresses out of the message,
// deduplicated case-insensitively in mention order.
func ExtractAddresses(text string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, m := range addressPattern.FindAllString(text, -1) {
		key := strings.ToLower(m)
		if !seen[key] {
			seen[key] = true
			result = append(result, m)
		}
	}
	return result
}
