package normalize

import "strings"

var titleReplacer = strings.NewReplacer(
	"[", "(",
	"]", ")",
	"{", "(",
	"}", ")",
	":", " -",
	"\"", "",
	"'", "",
	"`", "",
	"#", "",
	"|", "",
	">", "",
	"&", "",
	"*", "",
)

// SanitizeTitle makes an imported remote summary safe for task frontmatter:
// brackets become parentheses, colons become " -", quote and other
// frontmatter-hazardous characters are stripped, and whitespace collapses.
// Only used when creating a new local task on import; existing titles are
// never rewritten.
func SanitizeTitle(title string) string {
	return strings.Join(strings.Fields(titleReplacer.Replace(title)), " ")
}
