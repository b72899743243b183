package lastfm

import "encoding/json"

type searchResponse struct {
	Results struct {
		TrackMatches struct {
			Track []searchTrackDTO `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

// track.search returns the artist as a plain string.
type searchTrackDTO struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	URL    string `json:"url"`
}

type similarResponse struct {
	SimilarTracks struct {
		Track []trackDTO `json:"track"`
	} `json:"similartracks"`
}

type topTracksResponse struct {
	Tracks struct {
		Track []trackDTO `json:"track"`
	} `json:"tracks"`
}

type trackDTO struct {
	Name   string      `json:"name"`
	Artist artistField `json:"artist"`
}

// artistField absorbs both shapes Last.fm uses for the artist: a bare string
// in some methods, an object with a "name" key in others.
type artistField string

func (a *artistField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = artistField(s)
		return nil
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = artistField(obj.Name)
	return nil
}

// apiError is Last.fm's in-band error payload.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
