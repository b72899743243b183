package music

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"melodyforge-bot/internal/client/lastfm"
	"melodyforge-bot/internal/store"
)

type stubMeta struct {
	search     []lastfm.Track
	searchErr  error
	similar    []lastfm.Track
	similarErr error
	top        []lastfm.Track
	topErr     error

	searchCalls  int
	similarSeeds []string
	topTags      []string
}

func (m *stubMeta) SearchTracks(ctx context.Context, query string, limit int) ([]lastfm.Track, error) {
	m.searchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit < len(m.search) {
		return m.search[:limit], nil
	}
	return m.search, nil
}

func (m *stubMeta) SimilarTracks(ctx context.Context, artist, track string, limit int) ([]lastfm.Track, error) {
	m.similarSeeds = append(m.similarSeeds, artist+" - "+track)
	return m.similar, m.similarErr
}

func (m *stubMeta) TopTracksByTag(ctx context.Context, tag string, limit int) ([]lastfm.Track, error) {
	m.topTags = append(m.topTags, tag)
	return m.top, m.topErr
}

// stubFetcher writes a real file per call so deletion can be observed.
type stubFetcher struct {
	t     *testing.T
	err   error
	calls []string
	paths []string
}

func (f *stubFetcher) FetchAudio(ctx context.Context, query string) (string, error) {
	f.calls = append(f.calls, query)
	if f.err != nil {
		return "", f.err
	}

	dir, err := os.MkdirTemp(f.t.TempDir(), "track-*")
	if err != nil {
		f.t.Fatalf("temp dir: %v", err)
	}
	path := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		f.t.Fatalf("write audio: %v", err)
	}
	f.paths = append(f.paths, path)
	return path, nil
}

type sentAudio struct {
	path, title, performer string
}

type recordSink struct {
	texts    []string
	statuses []string
	audio    []sentAudio
	audioErr error
	dropped  int
}

func (s *recordSink) SendText(text string) error {
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordSink) SendAudio(path, title, performer string) error {
	if s.audioErr != nil {
		return s.audioErr
	}
	s.audio = append(s.audio, sentAudio{path: path, title: title, performer: performer})
	return nil
}

func (s *recordSink) Status(text string) { s.statuses = append(s.statuses, text) }
func (s *recordSink) DropStatus()        { s.dropped++ }

func (s *recordSink) lastStatus() string {
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

type fixture struct {
	svc     *Service
	store   *store.Store
	meta    *stubMeta
	fetcher *stubFetcher
}

func newFixture(t *testing.T, meta *stubMeta, fetcher *stubFetcher) *fixture {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if fetcher == nil {
		fetcher = &stubFetcher{t: t}
	}
	fetcher.t = t

	return &fixture{
		svc:     NewService(st, meta, fetcher, nil),
		store:   st,
		meta:    meta,
		fetcher: fetcher,
	}
}

func (f *fixture) historyOf(t *testing.T, userID int64) []store.HistoryEntry {
	t.Helper()
	entries, err := f.store.RecentHistory(context.Background(), userID, 10)
	if err != nil {
		t.Fatalf("recent history: %v", err)
	}
	return entries
}

func TestHandleText_BasicAutoFetch(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &stubMeta{
		search: []lastfm.Track{{Name: "Believer", Artist: "Imagine Dragons"}},
	}, nil)
	sink := &recordSink{}

	err := fx.svc.HandleText(ctx, &Session{}, 42, "Imagine Dragons Believer", sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fx.fetcher.calls; len(got) != 1 || got[0] != "Imagine Dragons Believer" {
		t.Fatalf("fetch calls: %v", got)
	}
	if len(sink.audio) != 1 || sink.audio[0].title != "Believer" || sink.audio[0].performer != "Imagine Dragons" {
		t.Fatalf("audio sent: %+v", sink.audio)
	}

	entries := fx.historyOf(t, 42)
	if len(entries) != 1 || entries[0].TrackName != "Believer" || entries[0].Artist != "Imagine Dragons" {
		t.Fatalf("history: %+v", entries)
	}

	// The temp file must be gone regardless of how delivery went.
	if _, err := os.Stat(fx.fetcher.paths[0]); !os.IsNotExist(err) {
		t.Fatalf("temp file still on disk: %v", err)
	}
}

func TestHandleText_BasicFallbackToRawQuery(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &stubMeta{}, nil)
	sink := &recordSink{}

	if err := fx.svc.HandleText(ctx, &Session{}, 42, "obscure demo tape", sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fx.fetcher.calls; len(got) != 1 || got[0] != "obscure demo tape" {
		t.Fatalf("fetch calls: %v", got)
	}
	if len(sink.audio) != 1 || sink.audio[0].title != "obscure demo tape" || sink.audio[0].performer != "Unknown" {
		t.Fatalf("audio sent: %+v", sink.audio)
	}

	entries := fx.historyOf(t, 42)
	if len(entries) != 1 || entries[0].Artist != "Unknown" {
		t.Fatalf("history: %+v", entries)
	}
}

func TestHandleText_MetadataErrorDegradesToFallback(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &stubMeta{searchErr: errors.New("timeout")}, nil)
	sink := &recordSink{}

	if err := fx.svc.HandleText(ctx, &Session{}, 42, "some song", sink); err != nil {
		t.Fatalf("adapter failure must not propagate: %v", err)
	}
	if got := fx.fetcher.calls; len(got) != 1 || got[0] != "some song" {
		t.Fatalf("fetch calls: %v", got)
	}
}

func TestHandleText_AdvancedPresentsListThenSelection(t *testing.T) {
	ctx := context.Background()
	results := []lastfm.Track{
		{Name: "One", Artist: "A"},
		{Name: "Two", Artist: "B"},
		{Name: "Three", Artist: "C"},
		{Name: "Four", Artist: "D"},
		{Name: "Five", Artist: "E"},
	}
	fx := newFixture(t, &stubMeta{search: results}, nil)
	sink := &recordSink{}
	sess := &Session{}

	if err := fx.store.SetMode(ctx, 42, store.ModeAdvanced); err != nil {
		t.Fatalf("set mode: %v", err)
	}

	if err := fx.svc.HandleText(ctx, sess, 42, "some query", sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fx.fetcher.calls) != 0 {
		t.Fatalf("advanced mode must not auto-fetch: %v", fx.fetcher.calls)
	}
	if len(sink.texts) != 1 || !strings.Contains(sink.texts[0], "2. B - Two") {
		t.Fatalf("list not presented: %q", sink.texts)
	}

	// Numeric reply selects exactly the 2nd candidate.
	if err := fx.svc.HandleText(ctx, sess, 42, "2", sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fx.fetcher.calls; len(got) != 1 || got[0] != "B Two" {
		t.Fatalf("fetch calls: %v", got)
	}
	entries := fx.historyOf(t, 42)
	if len(entries) != 1 || entries[0].TrackName != "Two" || entries[0].Artist != "B" {
		t.Fatalf("history: %+v", entries)
	}
}

func TestHandleText_SelectionShortCircuitsSearch(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &stubMeta{}, nil)
	sink := &recordSink{}

	sess := &Session{}
	sess.SetActive(TagGenreMix, []lastfm.Track{{Name: "Creep", Artist: "Radiohead"}})

	if err := fx.svc.HandleText(ctx, sess, 42, "1", sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.meta.searchCalls != 0 {
		t.Fatalf("selection must skip metadata search, got %d calls", fx.meta.searchCalls)
	}
	if got := fx.fetcher.calls; len(got) != 1 || got[0] != "Radiohead Creep" {
		t.Fatalf("fetch calls: %v", got)
	}
}

func TestHandleText_AdvancedNoResults(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &stubMeta{}, nil)
	sink := &recordSink{}

	if err := fx.store.SetMode(ctx, 42, store.ModeAdvanced); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if err := fx.svc.HandleText(ctx, &Session{}, 42, "nothing", sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.lastStatus() != msgNotFound {
		t.Fatalf("last status: %q", sink.lastStatus())
	}
	if len(fx.fetcher.calls) != 0 {
		t.Fatalf("no fetch expected: %v", fx.fetcher.calls)
	}
}

func TestHandleText_DoubleFailureLeavesNoHistory(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &stubMeta{}, &stubFetcher{err: errors.New("extraction failed")})
	sink := &recordSink{}

	if err := fx.svc.HandleText(ctx, &Session{}, 42, "nothing anywhere", sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.lastStatus() != msgDownloadFailed {
		t.Fatalf("last status: %q", sink.lastStatus())
	}
	if len(sink.audio) != 0 {
		t.Fatalf("no audio expected: %+v", sink.audio)
	}
	if entries := fx.historyOf(t, 42); len(entries) != 0 {
		t.Fatalf("history must stay empty: %+v", entries)
	}
}

func TestHandleText_DeliveryFailureSkipsHistoryButCleansUp(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &stubMeta{
		search: []lastfm.Track{{Name: "Believer", Artist: "Imagine Dragons"}},
	}, nil)
	sink := &recordSink{audioErr: errors.New("file too big")}

	if err := fx.svc.HandleText(ctx, &Session{}, 42, "believer", sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.lastStatus() != msgSendFailed {
		t.Fatalf("last status: %q", sink.lastStatus())
	}
	if entries := fx.historyOf(t, 42); len(entries) != 0 {
		t.Fatalf("history must stay empty: %+v", entries)
	}
	if _, err := os.Stat(fx.fetcher.paths[0]); !os.IsNotExist(err) {
		t.Fatalf("temp file still on disk: %v", err)
	}
}

func TestHandleText_PromotionCadence(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &stubMeta{}, &stubFetcher{err: errors.New("nope")})
	sink := &recordSink{}

	for i := 0; i < 9; i++ {
		if _, err := fx.store.RecordInteraction(ctx, 42); err != nil {
			t.Fatalf("record interaction: %v", err)
		}
	}

	// The 10th inbound message triggers exactly one promo.
	if err := fx.svc.HandleText(ctx, &Session{}, 42, "query", sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.texts) != 1 {
		t.Fatalf("expected one promo message, got %q", sink.texts)
	}
	promo := sink.texts[0]
	found := false
	for _, m := range promoMessages {
		if m == promo {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("unexpected promo text: %q", promo)
	}

	// The 11th does not.
	sink = &recordSink{}
	if err := fx.svc.HandleText(ctx, &Session{}, 42, "query", sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.texts) != 0 {
		t.Fatalf("no promo expected: %q", sink.texts)
	}
}

func TestRecommendations(t *testing.T) {
	ctx := context.Background()

	t.Run("no history", func(t *testing.T) {
		fx := newFixture(t, &stubMeta{}, nil)
		sink := &recordSink{}

		if err := fx.svc.Recommendations(ctx, &Session{}, 42, sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sink.texts) != 1 || sink.texts[0] != msgNoHistory {
			t.Fatalf("texts: %q", sink.texts)
		}
	})

	t.Run("seeds from latest entry and activates list", func(t *testing.T) {
		similar := []lastfm.Track{
			{Name: "Thunder", Artist: "Imagine Dragons"},
			{Name: "Natural", Artist: "Imagine Dragons"},
		}
		fx := newFixture(t, &stubMeta{similar: similar}, nil)
		sink := &recordSink{}
		sess := &Session{}

		if err := fx.store.AppendHistory(ctx, 42, "Old Song", "Old Artist"); err != nil {
			t.Fatalf("append history: %v", err)
		}
		if err := fx.store.AppendHistory(ctx, 42, "Believer", "Imagine Dragons"); err != nil {
			t.Fatalf("append history: %v", err)
		}

		if err := fx.svc.Recommendations(ctx, sess, 42, sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := fx.meta.similarSeeds; len(got) != 1 || got[0] != "Imagine Dragons - Believer" {
			t.Fatalf("similar seeds: %v", got)
		}
		if track, ok := sess.Resolve("2"); !ok || track.Name != "Natural" {
			t.Fatalf("list not active: %+v ok=%v", track, ok)
		}
	})

	t.Run("lookup failure reads as no results", func(t *testing.T) {
		fx := newFixture(t, &stubMeta{similarErr: errors.New("timeout")}, nil)
		sink := &recordSink{}

		if err := fx.store.AppendHistory(ctx, 42, "Believer", "Imagine Dragons"); err != nil {
			t.Fatalf("append history: %v", err)
		}
		if err := fx.svc.Recommendations(ctx, &Session{}, 42, sink); err != nil {
			t.Fatalf("adapter failure must not propagate: %v", err)
		}
		if sink.lastStatus() != msgNoSimilar {
			t.Fatalf("last status: %q", sink.lastStatus())
		}
	})
}

func TestGenreMix(t *testing.T) {
	ctx := context.Background()

	t.Run("activates list", func(t *testing.T) {
		top := []lastfm.Track{
			{Name: "Smells Like Teen Spirit", Artist: "Nirvana"},
			{Name: "Creep", Artist: "Radiohead"},
		}
		fx := newFixture(t, &stubMeta{top: top}, nil)
		sink := &recordSink{}
		sess := &Session{}

		if err := fx.svc.GenreMix(ctx, sess, "hip hop", sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := fx.meta.topTags; len(got) != 1 || got[0] != "hip hop" {
			t.Fatalf("top tags: %v", got)
		}
		if len(sink.texts) != 1 || !strings.Contains(sink.texts[0], "Hip Hop") {
			t.Fatalf("texts: %q", sink.texts)
		}
		if track, ok := sess.Resolve("1"); !ok || track.Name != "Smells Like Teen Spirit" {
			t.Fatalf("list not active: %+v ok=%v", track, ok)
		}
	})

	t.Run("empty reads as no mix", func(t *testing.T) {
		fx := newFixture(t, &stubMeta{}, nil)
		sink := &recordSink{}

		if err := fx.svc.GenreMix(ctx, &Session{}, "polka", sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sink.lastStatus() != msgNoMix {
			t.Fatalf("last status: %q", sink.lastStatus())
		}
	})
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &stubMeta{}, nil)

	t.Run("empty", func(t *testing.T) {
		sink := &recordSink{}
		if err := fx.svc.History(ctx, 7, sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sink.texts) != 1 || sink.texts[0] != msgEmptyHistory {
			t.Fatalf("texts: %q", sink.texts)
		}
	})

	t.Run("most recent first", func(t *testing.T) {
		if err := fx.store.AppendHistory(ctx, 42, "First", "A"); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := fx.store.AppendHistory(ctx, 42, "Second", "B"); err != nil {
			t.Fatalf("append: %v", err)
		}

		sink := &recordSink{}
		if err := fx.svc.History(ctx, 42, sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sink.texts) != 1 {
			t.Fatalf("texts: %q", sink.texts)
		}
		if !strings.Contains(sink.texts[0], "1. B - Second") || !strings.Contains(sink.texts[0], "2. A - First") {
			t.Fatalf("history order wrong: %q", sink.texts[0])
		}
	})
}
