package textproc

import "unicode"

// DetectLanguage classifies input as Arabic when at least a quarter of its
// letters are Arabic script, English otherwise. Deterministic on purpose:
// the router and the localized fallbacks depend on a stable answer.
func DetectLanguage(text string) string {
	var letters, arabic int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Arabic, r) {
			arabic++
		}
	}
	if letters > 0 && arabic*4 >= letters {
		return "ar"
	}
	return "en"
}
