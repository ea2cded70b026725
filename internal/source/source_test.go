package source

import (
	"errors"
	"testing"
)

func TestParse_Variants(t *testing.T) {
	tests := []struct {
		name string
		text string
		id   string
	}{
		{"plain s link", "https://terabox.com/s/1jggGfxabc", "1jggGfxabc"},
		{"1024 prefix domain", "https://1024terabox.com/s/1jggGfxabc", "1jggGfxabc"},
		{"www app domain", "https://www.teraboxapp.com/s/1jggGfxabc", "1jggGfxabc"},
		{"surl without leading 1", "https://terabox.com/wap/share/filelist?surl=jggGfxabc", "1jggGfxabc"},
		{"surl with leading 1", "https://terabox.com/wap/share/filelist?surl=1jggGfxabc", "1jggGfxabc"},
		{"http scheme", "http://terabox.com/s/1jggGfxabc", "1jggGfxabc"},
		{"embedded in message", "check this out https://terabox.com/s/1jggGfxabc please", "1jggGfxabc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.text, err)
			}
			if item.SourceID != tt.id {
				t.Errorf("SourceID = %q, want %q", item.SourceID, tt.id)
			}
			if item.ShareURL != "https://terabox.com/s/"+tt.id {
				t.Errorf("ShareURL = %q, want canonical form", item.ShareURL)
			}
		})
	}
}

func TestParse_EquivalentSpellingsCollapse(t *testing.T) {
	spellings := []string{
		"https://terabox.com/s/1jggGfxabc",
		"http://www.1024terabox.com/s/1jggGfxabc",
		"https://teraboxapp.com/wap/share/filelist?surl=jggGfxabc",
		"https://terabox.com/wap/share/filelist?surl=1jggGfxabc",
	}

	first, err := Parse(spellings[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range spellings[1:] {
		item, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if item.SourceID != first.SourceID {
			t.Errorf("Parse(%q).SourceID = %q, want %q", s, item.SourceID, first.SourceID)
		}
	}
}

func TestParse_NoLink(t *testing.T) {
	for _, text := range []string{"", "hello", "https://example.com/s/1abc", "terabox"} {
		if _, err := Parse(text); !errors.Is(err, ErrNoLink) {
			t.Errorf("Parse(%q) err = %v, want ErrNoLink", text, err)
		}
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"abc123", "1abc123"},
		{"1abc123", "1abc123"},
		{"11abc", "11abc"},
		{"  abc ", "1abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeID(tt.in); got != tt.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
