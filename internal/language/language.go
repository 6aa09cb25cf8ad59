package language

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto is the wildcard target meaning "keep the detected language".
const Auto = "auto"

type entry struct {
	code2 string
	words []string
}

// supported lists the languages the synthesis and translation stages accept.
var supported = []entry{
	{"en", []string{"english"}},
	{"es", []string{"spanish", "espanol", "español"}},
	{"fr", []string{"french", "francais", "français"}},
	{"de", []string{"german", "deutsch"}},
	{"it", []string{"italian"}},
	{"pt", []string{"portuguese"}},
	{"zh", []string{"chinese", "mandarin"}},
	{"ja", []string{"japanese"}},
	{"ko", []string{"korean"}},
	{"ar", []string{"arabic"}},
	{"ru", []string{"russian"}},
	{"hi", []string{"hindi"}},
}

var (
	byCode2 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(supported))
	byWord = make(map[string]*entry, len(supported)*2)
	for i := range supported {
		e := &supported[i]
		byCode2[e.code2] = e
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

// Normalize converts a language code, BCP 47 tag, ISO 639-2 code, or English
// word form into an ISO 639-1 code. "auto" passes through. Unrecognized input
// returns an empty string.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if code == Auto {
		return Auto
	}
	if e, ok := byWord[code]; ok {
		return e.code2
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}

// IsAuto reports whether code is the wildcard target.
func IsAuto(code string) bool {
	return strings.EqualFold(strings.TrimSpace(code), Auto)
}

// Same reports whether two codes resolve to the same base language.
func Same(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// Supported reports whether code resolves to a language the pipeline can
// synthesize. The wildcard is always accepted.
func Supported(code string) bool {
	n := Normalize(code)
	if n == Auto {
		return true
	}
	_, ok := byCode2[n]
	return ok
}

// SupportedCodes returns the accepted ISO 639-1 codes in sorted order.
func SupportedCodes() []string {
	out := make([]string, 0, len(byCode2))
	for code := range byCode2 {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// ToISO3 converts a recognized code to ISO 639-2 (3-letter). Returns "und"
// for unrecognized input.
func ToISO3(code string) string {
	n := Normalize(code)
	if n == "" || n == Auto {
		return "und"
	}
	base, err := language.ParseBase(n)
	if err != nil {
		return "und"
	}
	return base.ISO3()
}

// DisplayName returns the English name for a recognized code, "Unknown" for
// empty input, or the uppercased input otherwise.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	n := Normalize(trimmed)
	if n == Auto {
		return "Auto"
	}
	if n != "" {
		if tag, err := language.Parse(n); err == nil {
			if name := display.English.Languages().Name(tag); name != "" {
				return name
			}
		}
	}
	return strings.ToUpper(trimmed)
}
