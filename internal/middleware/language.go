package middleware

import (
	"context"
	"net/http"

	"postroom/internal/i18n"
)

const localeKey contextKey = "locale"

// Language resolves the request locale from Accept-Language and stores it
// on the context for handlers to read.
func Language(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := i18n.MatchLocale(r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localeKey, locale)))
	})
}

func GetLocale(ctx context.Context) string {
	if l, ok := ctx.Value(localeKey).(string); ok {
		return l
	}
	return i18n.DefaultLocale
}
