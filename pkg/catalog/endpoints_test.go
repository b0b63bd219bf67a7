package catalog

import "testing"

func TestSearchURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://api2.m-team.cc", "https://api2.m-team.cc/api/torrent/search"},
		{"https://api2.m-team.cc/", "https://api2.m-team.cc/api/torrent/search"},
	}
	for _, tt := range tests {
		if got := SearchURL(tt.base); got != tt.want {
			t.Errorf("SearchURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestTokenURL(t *testing.T) {
	got := TokenURL("https://api2.m-team.cc/", "12345")
	want := "https://api2.m-team.cc/api/torrent/genDlToken?id=12345"
	if got != want {
		t.Errorf("TokenURL() = %q, want %q", got, want)
	}
}
