// Package catalog holds the localized message bundle for slotsim.
//
// Messages are grouped by namespace ("errors" for domain error templates,
// "cli" for command output) and registered with golang.org/x/text/message so
// a message.Printer can format them with locale-aware numbers.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// BaseLocale is the fallback locale.
	BaseLocale = "en-US"
	// JapaneseLocale is the Japanese locale.
	JapaneseLocale = "ja-JP"
)

// Namespaces.
const (
	NamespaceErrors = "errors"
	NamespaceCLI    = "cli"
)

// Bundle maps locale -> namespace -> key -> message.
type Bundle struct {
	locales map[string]map[string]map[string]string
	tags    []language.Tag
	names   []string
	matcher language.Matcher
}

var defaultBundle = mustDefault()

// Default returns the process-wide bundle. Its messages are registered with
// x/text/message at package init.
func Default() *Bundle {
	return defaultBundle
}

// New builds a bundle from locale -> namespace -> key -> message. The base
// locale must be present.
func New(locales map[string]map[string]map[string]string) (*Bundle, error) {
	if _, ok := locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s missing", BaseLocale)
	}
	b := &Bundle{locales: map[string]map[string]map[string]string{}}
	names := make([]string, 0, len(locales))
	for locale := range locales {
		names = append(names, locale)
	}
	// Base locale first so the matcher falls back to it.
	sort.Slice(names, func(i, j int) bool {
		if names[i] == BaseLocale || names[j] == BaseLocale {
			return names[i] == BaseLocale
		}
		return names[i] < names[j]
	})
	for _, locale := range names {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale %q: %w", locale, err)
		}
		b.tags = append(b.tags, tag)
		b.names = append(b.names, locale)
		namespaces := map[string]map[string]string{}
		for ns, messages := range locales[locale] {
			namespaces[ns] = copyMap(messages)
		}
		b.locales[locale] = namespaces
	}
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

// Register installs every message into the x/text/message default catalog.
// Missing keys in a locale fall back to the base locale text.
func (b *Bundle) Register() error {
	base := b.locales[BaseLocale]
	for i, locale := range b.names {
		tag := b.tags[i]
		for ns, baseMessages := range base {
			for key, text := range baseMessages {
				if localized, ok := b.locales[locale][ns][key]; ok {
					text = localized
				}
				if err := message.SetString(tag, key, text); err != nil {
					return fmt.Errorf("register %s %s: %w", locale, key, err)
				}
			}
		}
	}
	return nil
}

// Locales lists the supported locales, base locale first.
func (b *Bundle) Locales() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// Match resolves a requested locale (for example "ja", "ja_JP" or an
// Accept-Language value) to a supported locale.
func (b *Bundle) Match(requested string) string {
	requested = strings.TrimSpace(strings.ReplaceAll(requested, "_", "-"))
	if requested == "" {
		return BaseLocale
	}
	tags, _, err := language.ParseAcceptLanguage(requested)
	if err != nil || len(tags) == 0 {
		return BaseLocale
	}
	_, index, confidence := b.matcher.Match(tags...)
	if confidence == language.No {
		return BaseLocale
	}
	return b.names[index]
}

// Tag returns the language tag of a supported locale, or the base tag.
func (b *Bundle) Tag(locale string) language.Tag {
	for i, name := range b.names {
		if name == locale {
			return b.tags[i]
		}
	}
	return b.tags[0]
}

// NamespaceMessagesWithFallback returns the resolved locale and the messages
// of one namespace, overlaid on the base locale.
func (b *Bundle) NamespaceMessagesWithFallback(locale, namespace string) (string, map[string]string) {
	resolved := b.Match(locale)
	out := copyMap(b.locales[BaseLocale][namespace])
	for key, value := range b.locales[resolved][namespace] {
		out[key] = value
	}
	return resolved, out
}

// Printer returns a message.Printer for the locale closest to requested.
func (b *Bundle) Printer(requested string) *message.Printer {
	return message.NewPrinter(b.Tag(b.Match(requested)))
}

func copyMap(source map[string]string) map[string]string {
	out := make(map[string]string, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}

func mustDefault() *Bundle {
	b, err := New(map[string]map[string]map[string]string{
		BaseLocale:     enUS,
		JapaneseLocale: jaJP,
	})
	if err != nil {
		panic(err)
	}
	if err := b.Register(); err != nil {
		panic(err)
	}
	return b
}
