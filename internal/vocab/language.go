// Package vocab implements word extraction from lyrics, the per-user
// vocabulary snapshot and the ledger status transitions.
package vocab

// Language is a tutoring language the bot supports.
type Language string

const (
	English  Language = "English"
	Chinese  Language = "Chinese"
	Japanese Language = "Japanese"
	Korean   Language = "Korean"
	French   Language = "French"
	Italian  Language = "Italian"
)

var supported = []Language{English, Chinese, Japanese, Korean, French, Italian}

// LanguageNames returns the supported language names, for JSON-schema
// enums.
func LanguageNames() []string {
	out := make([]string, len(supported))
	for i, l := range supported {
		out[i] = string(l)
	}
	return out
}

// IsSupported reports whether name is a supported language.
func IsSupported(name string) bool {
	for _, l := range supported {
		if string(l) == name {
			return true
		}
	}
	return false
}
