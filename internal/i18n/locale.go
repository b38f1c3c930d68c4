package i18n

import "strings"

// MatchLocale picks a supported locale from an Accept-Language header value.
// Entries are tried in order; a regional tag like "nl-BE" matches its primary
// subtag. Unknown or empty headers resolve to the default locale.
func MatchLocale(acceptLanguage string) string {
	if acceptLanguage == "" {
		return DefaultLocale
	}
	for _, part := range strings.Split(acceptLanguage, ",") {
		lang := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		if lang == "" {
			continue
		}
		if supported(lang) {
			return lang
		}
		primary := strings.SplitN(strings.ReplaceAll(lang, "_", "-"), "-", 2)[0]
		if supported(primary) {
			return primary
		}
	}
	return DefaultLocale
}

func supported(lang string) bool {
	for _, s := range SupportedLocales {
		if s == lang {
			return true
		}
	}
	return false
}
