package textutil

import "strings"

// Separator-ish characters become dashes so titles keep their shape;
// reserved characters with no visual role are dropped outright.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName makes an episode title safe to use as a file name while
// keeping it readable. The result may be empty when the input was only
// unsafe characters or whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// SanitizeToken reduces a value to a lowercase [a-z0-9_-] token for use in
// paths and log fields. Anything else maps to an underscore. Inputs with no
// salvageable characters come back as "unknown".
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, value)
	out := strings.Trim(mapped, "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
