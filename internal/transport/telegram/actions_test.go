package telegram

import "testing"

func TestParseAction(t *testing.T) {
	tests := []struct {
		data      string
		wantKind  actionKind
		wantGenre string
	}{
		{"mode_basic", actionModeBasic, ""},
		{"mode_advanced", actionModeAdvanced, ""},
		{"search", actionSearch, ""},
		{"recommendations", actionRecommendations, ""},
		{"history", actionHistory, ""},
		{"back_to_start", actionBack, ""},

		// "genre_mix" opens the menu; only genre_<tag> carries a tag.
		{"genre_mix", actionGenreMenu, ""},
		{"genre_rock", actionGenre, "rock"},
		{"genre_hip hop", actionGenre, "hip hop"},
		{"genre_electronic", actionGenre, "electronic"},

		{"genre_", actionUnknown, ""},
		{"", actionUnknown, ""},
		{"download:123", actionUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got := parseAction(tt.data)
			if got.kind != tt.wantKind {
				t.Fatalf("kind: got %d, want %d", got.kind, tt.wantKind)
			}
			if got.genre != tt.wantGenre {
				t.Fatalf("genre: got %q, want %q", got.genre, tt.wantGenre)
			}
		})
	}
}
