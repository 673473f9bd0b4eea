package catalog

import (
	"strings"
	"unicode"
)

// NamingConvention controls the textual rendering of generated tool names.
type NamingConvention string

const (
	SnakeCase  NamingConvention = "snake_case"
	KebabCase  NamingConvention = "kebab-case"
	CamelCase  NamingConvention = "camelCase"
	PascalCase NamingConvention = "PascalCase"
)

// ParseNamingConvention maps a config string to a convention, defaulting
// to snake_case.
func ParseNamingConvention(s string) NamingConvention {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kebab", "kebab-case", "kebab_case":
		return KebabCase
	case "camel", "camelcase", "camel_case":
		return CamelCase
	case "pascal", "pascalcase", "pascal_case":
		return PascalCase
	default:
		return SnakeCase
	}
}

// Render joins the raw name tokens under the convention. Tokens are taken
// verbatim from the schema (no pluralization); only their case changes.
// Render("get", "Category", "Products") under snake_case yields
// "get_category_products".
func (n NamingConvention) Render(tokens ...string) string {
	var words []string
	for _, tok := range tokens {
		words = append(words, splitWords(tok)...)
	}
	if len(words) == 0 {
		return ""
	}

	switch n {
	case KebabCase:
		return strings.Join(words, "-")
	case CamelCase:
		out := words[0]
		for _, w := range words[1:] {
			out += capitalize(w)
		}
		return out
	case PascalCase:
		var out strings.Builder
		for _, w := range words {
			out.WriteString(capitalize(w))
		}
		return out.String()
	default:
		return strings.Join(words, "_")
	}
}

// splitWords breaks an identifier into lower-case words on case changes,
// underscores and hyphens. "SalesOrderItem" -> [sales order item].
func splitWords(s string) []string {
	var words []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			words = append(words, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case unicode.IsUpper(r):
			// Start a new word on lower->upper transitions and on the last
			// capital of an acronym run ("HTTPServer" -> http server).
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				flush()
			} else if i > 0 && unicode.IsUpper(runes[i-1]) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
				flush()
			}
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
