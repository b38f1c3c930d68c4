// Package i18n holds the translatable text value type and locale negotiation
// shared by the post endpoints.
package i18n

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

const DefaultLocale = "en"

// SupportedLocales are the locales negotiated from Accept-Language.
var SupportedLocales = []string{"en", "nl", "ar"}

// Text is a field that is either a plain string or a per-locale mapping.
// The zero value is an empty plain string.
type Text struct {
	plain     string
	localized map[string]string
}

func Plain(s string) Text {
	return Text{plain: s}
}

func Localized(m map[string]string) Text {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Text{localized: cp}
}

// IsLocalized reports whether the text carries per-locale values.
func (t Text) IsLocalized() bool {
	return t.localized != nil
}

func (t Text) IsZero() bool {
	return t.localized == nil && t.plain == ""
}

// Resolve returns the value for locale. Plain text ignores the locale.
// Localized text falls back to the default locale, then to the first
// locale in lexical order so the result is deterministic.
func (t Text) Resolve(locale string) string {
	if t.localized == nil {
		return t.plain
	}
	if v, ok := t.localized[locale]; ok {
		return v
	}
	if v, ok := t.localized[DefaultLocale]; ok {
		return v
	}
	keys := make([]string, 0, len(t.localized))
	for k := range t.localized {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return t.localized[keys[0]]
}

// MarshalJSON preserves the shape the text was constructed with: plain
// text serializes as a JSON string, localized text as an object.
func (t Text) MarshalJSON() ([]byte, error) {
	if t.localized != nil {
		return json.Marshal(t.localized)
	}
	return json.Marshal(t.plain)
}

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text{plain: s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("i18n: text must be a string or an object of strings: %w", err)
	}
	if len(m) == 0 {
		return fmt.Errorf("i18n: localized text needs at least one locale entry")
	}
	*t = Text{localized: m}
	return nil
}

// Value implements driver.Valuer; texts are stored as JSONB.
func (t Text) Value() (driver.Value, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (t *Text) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return t.UnmarshalJSON(v)
	case string:
		return t.UnmarshalJSON([]byte(v))
	case nil:
		*t = Text{}
		return nil
	default:
		return fmt.Errorf("i18n: cannot scan %T into Text", src)
	}
}
