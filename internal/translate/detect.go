package translate

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// DetectLanguage runs a local, script-based guess at the language of a
// text. It returns "" when the script is ambiguous (Latin in
// particular), leaving resolution to the declared-language fallbacks.
func DetectLanguage(text string) string {
	var han, kana, hangul, cyrillic, arabic, thai int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Thai, r):
			thai++
		}
	}

	switch {
	case kana > 0:
		return "ja"
	case hangul > 0:
		return "ko"
	case han > 0:
		return "zh"
	case cyrillic > 0:
		return "ru"
	case arabic > 0:
		return "ar"
	case thai > 0:
		return "th"
	}
	return ""
}

// sameLanguage compares two BCP 47 tags by base language, so "zh" and
// "zh-CN" match. Unparseable tags fall back to case-insensitive
// string comparison.
func sameLanguage(a, b string) bool {
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	baseA, _ := ta.Base()
	baseB, _ := tb.Base()
	return baseA == baseB
}
