package seed

import (
	"strings"
	"testing"
)

func TestPresent(t *testing.T) {
	if (Data{}).Present() {
		t.Error("empty descriptor should not be present")
	}
	if !(Data{Permalink: "https://example.com/seed/1"}).Present() {
		t.Error("permalink alone should be present")
	}
	if !(Data{FileURL: "https://example.com/patch.bps"}).Present() {
		t.Error("file URL alone should be present")
	}
	if !(Data{Hash: []string{"Bow"}}).Present() {
		t.Error("hash alone should be present")
	}
}

func TestPlayerURLPrefersPatcherForFiles(t *testing.T) {
	d := Data{
		Permalink: "https://example.com/seed/1",
		FileURL:   "https://example.com/patch file.bps",
	}
	got := d.PlayerURL()
	if !strings.HasPrefix(got, PatcherURL+"?patch=") {
		t.Fatalf("PlayerURL() = %q, want patcher link", got)
	}
	if strings.Contains(got, " ") {
		t.Errorf("PlayerURL() = %q, file URL not escaped", got)
	}

	d.FileURL = ""
	if got := d.PlayerURL(); got != d.Permalink {
		t.Errorf("PlayerURL() = %q, want permalink %q", got, d.Permalink)
	}
}

func TestHashLine(t *testing.T) {
	d := Data{Hash: []string{"Bow", "Boomerang", "Hookshot", "Bombs", "Mushroom"}}
	want := "Bow / Boomerang / Hookshot / Bombs / Mushroom"
	if got := d.HashLine(); got != want {
		t.Errorf("HashLine() = %q, want %q", got, want)
	}
	if got := (Data{}).HashLine(); got != "" {
		t.Errorf("HashLine() on empty hash = %q, want empty", got)
	}
}
