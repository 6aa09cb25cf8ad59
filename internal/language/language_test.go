package language

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"EN", "en"},
		{"es-MX", "es"},
		{"pt-BR", "pt"},
		{"spa", "es"},
		{"fra", "fr"},
		{"english", "en"},
		{"Spanish", "es"},
		{"auto", "auto"},
		{" AUTO ", "auto"},
		{"", ""},
		{"not a language", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.expected {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSame(t *testing.T) {
	if !Same("en", "en-US") {
		t.Fatal("expected en and en-US to match")
	}
	if !Same("english", "eng") {
		t.Fatal("expected word form and ISO 639-2 to match")
	}
	if Same("en", "es") {
		t.Fatal("expected en and es to differ")
	}
	if Same("", "") {
		t.Fatal("expected empty codes to never match")
	}
}

func TestSupported(t *testing.T) {
	for _, code := range []string{"en", "es", "zh", "hi", "auto", "ja-JP"} {
		if !Supported(code) {
			t.Errorf("expected %q to be supported", code)
		}
	}
	for _, code := range []string{"sv", "xx", ""} {
		if Supported(code) {
			t.Errorf("expected %q to be unsupported", code)
		}
	}
	if got := len(SupportedCodes()); got != 12 {
		t.Fatalf("expected 12 supported codes, got %d", got)
	}
}

func TestToISO3(t *testing.T) {
	tests := map[string]string{
		"en":    "eng",
		"es":    "spa",
		"de":    "deu",
		"auto":  "und",
		"bogus": "und",
	}
	for input, want := range tests {
		if got := ToISO3(input); got != want {
			t.Errorf("ToISO3(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("es"); got != "Spanish" {
		t.Fatalf("DisplayName(es) = %q", got)
	}
	if got := DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName(\"\") = %q", got)
	}
	if got := DisplayName("auto"); got != "Auto" {
		t.Fatalf("DisplayName(auto) = %q", got)
	}
}
