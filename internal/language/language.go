package language

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Auto asks the provider to detect the source language. It is never a valid
// target.
const Auto = "auto"

// Language is a selectable language.
type Language struct {
	Code string
	Name string
}

// IsAuto reports whether l is the auto-detect pseudo language.
func (l Language) IsAuto() bool { return l.Code == Auto }

var autoDetect = Language{Code: Auto, Name: "Auto-detect"}

// Languages maps base language codes to names.
var Languages = map[string]Language{
	"ar": {Code: "ar", Name: "Arabic"},
	"cs": {Code: "cs", Name: "Czech"},
	"da": {Code: "da", Name: "Danish"},
	"de": {Code: "de", Name: "German"},
	"el": {Code: "el", Name: "Greek"},
	"en": {Code: "en", Name: "English"},
	"es": {Code: "es", Name: "Spanish"},
	"fi": {Code: "fi", Name: "Finnish"},
	"fr": {Code: "fr", Name: "French"},
	"he": {Code: "he", Name: "Hebrew"},
	"hi": {Code: "hi", Name: "Hindi"},
	"hu": {Code: "hu", Name: "Hungarian"},
	"id": {Code: "id", Name: "Indonesian"},
	"it": {Code: "it", Name: "Italian"},
	"ja": {Code: "ja", Name: "Japanese"},
	"ko": {Code: "ko", Name: "Korean"},
	"nl": {Code: "nl", Name: "Dutch"},
	"no": {Code: "no", Name: "Norwegian"},
	"pl": {Code: "pl", Name: "Polish"},
	"pt": {Code: "pt", Name: "Portuguese"},
	"ro": {Code: "ro", Name: "Romanian"},
	"ru": {Code: "ru", Name: "Russian"},
	"sv": {Code: "sv", Name: "Swedish"},
	"th": {Code: "th", Name: "Thai"},
	"tr": {Code: "tr", Name: "Turkish"},
	"uk": {Code: "uk", Name: "Ukrainian"},
	"vi": {Code: "vi", Name: "Vietnamese"},
	"zh": {Code: "zh", Name: "Chinese"},
}

// Lookup resolves code to a supported language. Regional and script
// variants ("pt-BR", "zh_Hant") resolve to their base language.
func Lookup(code string) (Language, bool) {
	code = strings.TrimSpace(code)
	if strings.EqualFold(code, Auto) {
		return autoDetect, true
	}
	if l, ok := Languages[strings.ToLower(code)]; ok {
		return l, true
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return Language{}, false
	}
	base, _ := tag.Base()
	l, ok := Languages[base.String()]
	return l, ok
}

// Source resolves a source language, which may be Auto.
func Source(code string) (Language, error) {
	l, ok := Lookup(code)
	if !ok {
		return Language{}, fmt.Errorf("unsupported source language %q", code)
	}
	return l, nil
}

// Target resolves a target language. Auto is rejected.
func Target(code string) (Language, error) {
	l, ok := Lookup(code)
	if !ok {
		return Language{}, fmt.Errorf("unsupported target language %q", code)
	}
	if l.IsAuto() {
		return Language{}, fmt.Errorf("target language cannot be %q", Auto)
	}
	return l, nil
}

// Name returns the display name for code, or code itself if unknown.
func Name(code string) string {
	if l, ok := Lookup(code); ok {
		return l.Name
	}
	return code
}

// Supported returns the target languages sorted by name.
func Supported() []Language {
	out := make([]Language, 0, len(Languages))
	for _, l := range Languages {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SourceOptions returns Auto followed by Supported.
func SourceOptions() []Language {
	return append([]Language{autoDetect}, Supported()...)
}
