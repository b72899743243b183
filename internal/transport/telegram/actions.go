package telegram

import "strings"

// actionKind is the closed set of button actions the bot understands.
// Callback data is decoded exactly once, here, at the transport boundary.
type actionKind int

const (
	actionUnknown actionKind = iota
	actionModeBasic
	actionModeAdvanced
	actionSearch
	actionRecommendations
	actionGenreMenu
	actionGenre
	actionHistory
	actionBack
)

type action struct {
	kind  actionKind
	genre string // set only for actionGenre
}

// parseAction decodes callback data. Exact matches go first: "genre_mix" is
// the menu action, not a mix for the tag "mix".
func parseAction(data string) action {
	switch data {
	case "mode_basic":
		return action{kind: actionModeBasic}
	case "mode_advanced":
		return action{kind: actionModeAdvanced}
	case "search":
		return action{kind: actionSearch}
	case "recommendations":
		return action{kind: actionRecommendations}
	case "genre_mix":
		return action{kind: actionGenreMenu}
	case "history":
		return action{kind: actionHistory}
	case "back_to_start":
		return action{kind: actionBack}
	}

	if tag, ok := strings.CutPrefix(data, "genre_"); ok && tag != "" {
		return action{kind: actionGenre, genre: tag}
	}

	return action{kind: actionUnknown}
}
