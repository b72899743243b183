// Package music orchestrates the search, download and delivery workflow.
package music

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"melodyforge-bot/internal/client/lastfm"
	"melodyforge-bot/internal/store"
)

const (
	searchLimitBasic    = 1
	searchLimitAdvanced = 5
	similarLimit        = 5
	genreMixLimit       = 10
	historyLimit        = 10
)

// Promotional messages shown every 10th interaction.
var promoMessages = []string{
	"Реклама: Попробуй наш партнёрский бот @CoolMusicBot!",
	"Реклама: Открой для себя новую музыку в @MusicDiscoveryBot!",
	"Реклама: Слушай радио онлайн через @RadioStreamBot!",
	"Реклама: Создавай плейлисты с @PlaylistMasterBot!",
}

const (
	msgNotFound       = "😔 Ничего не найдено. Попробуй другой запрос."
	msgDownloadFailed = "❌ Не удалось скачать трек. Попробуй другой запрос."
	msgSendFailed     = "❌ Не удалось отправить трек. Попробуй позже."
	msgNoHistory      = "📭 У тебя пока нет истории прослушиваний. Скачай несколько треков сначала!"
	msgEmptyHistory   = "📭 История пуста."
	msgNoSimilar      = "😔 Не удалось найти рекомендации. Попробуй позже."
	msgNoMix          = "😔 Не удалось создать микс. Попробуй другой жанр."
	msgSearching      = "🔍 Ищу музыку..."
	msgDownloading    = "⬇️ Скачиваю..."
	msgSending        = "📤 Отправляю..."
)

// Store is the persistence port the service depends on.
type Store interface {
	GetProfile(ctx context.Context, userID int64) (store.Profile, error)
	EnsureProfile(ctx context.Context, userID int64) error
	SetMode(ctx context.Context, userID int64, mode store.Mode) error
	RecordInteraction(ctx context.Context, userID int64) (store.Profile, error)
	AppendHistory(ctx context.Context, userID int64, trackName, artist string) error
	RecentHistory(ctx context.Context, userID int64, limit int) ([]store.HistoryEntry, error)
}

// Fetcher resolves a free-text query to a local audio file.
type Fetcher interface {
	FetchAudio(ctx context.Context, query string) (string, error)
}

// Sink delivers replies for one inbound update back to the chat transport.
// Status maintains a single best-effort progress message that later calls
// update in place; DropStatus removes it.
type Sink interface {
	SendText(text string) error
	SendAudio(path, title, performer string) error
	Status(text string)
	DropStatus()
}

// Service ties the store, the metadata client and the fetcher together.
type Service struct {
	store   Store
	meta    lastfm.Client
	fetcher Fetcher
	logger  *zap.Logger
}

// NewService constructs the orchestrator.
func NewService(st Store, meta lastfm.Client, fetcher Fetcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   st,
		meta:    meta,
		fetcher: fetcher,
		logger:  logger,
	}
}

// EnsureProfile lazily creates the user's profile with defaults.
func (s *Service) EnsureProfile(ctx context.Context, userID int64) error {
	return s.store.EnsureProfile(ctx, userID)
}

// SetMode switches the user between basic and advanced behavior.
func (s *Service) SetMode(ctx context.Context, userID int64, mode store.Mode) error {
	return s.store.SetMode(ctx, userID, mode)
}

// HandleText processes one inbound free-text message: counts the
// interaction, shows a promo when the cadence fires, resolves a pending
// numeric selection, and otherwise searches according to the user's mode.
func (s *Service) HandleText(ctx context.Context, sess *Session, userID int64, text string, out Sink) error {
	profile, err := s.store.RecordInteraction(ctx, userID)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}

	if profile.ShouldShowPromotion() {
		promo := promoMessages[rand.Intn(len(promoMessages))]
		if err := out.SendText(promo); err != nil {
			s.logger.Warn("promo delivery failed", zap.Int64("userID", userID), zap.Error(err))
		}
	}

	// A numeric reply against the active list short-circuits everything else.
	if track, ok := sess.Resolve(text); ok {
		return s.deliver(ctx, userID, track.DownloadQuery(), track.Name, track.Artist, out)
	}

	if profile.Mode == store.ModeAdvanced {
		return s.advancedSearch(ctx, sess, userID, text, out)
	}
	return s.basicSearch(ctx, userID, text, out)
}

// basicSearch auto-fetches the top metadata hit, falling back to the raw
// text as a query: the extractor indexes plenty the metadata service misses.
func (s *Service) basicSearch(ctx context.Context, userID int64, text string, out Sink) error {
	out.Status(msgSearching)

	tracks := s.searchOrEmpty(ctx, text, searchLimitBasic)
	if len(tracks) > 0 {
		t := tracks[0]
		return s.deliver(ctx, userID, t.DownloadQuery(), t.Name, t.Artist, out)
	}

	return s.deliver(ctx, userID, text, text, "Unknown", out)
}

// advancedSearch presents up to five candidates for numeric selection.
func (s *Service) advancedSearch(ctx context.Context, sess *Session, userID int64, text string, out Sink) error {
	out.Status(msgSearching)

	tracks := s.searchOrEmpty(ctx, text, searchLimitAdvanced)
	if len(tracks) == 0 {
		out.Status(msgNotFound)
		return nil
	}

	sess.SetActive(TagSearchResults, tracks)
	out.DropStatus()
	return out.SendText(formatTrackList("🎵 Найденные треки:", tracks,
		"Отправь номер трека для скачивания."))
}

// Recommendations builds a similar-tracks list seeded from the most recent
// history entry.
func (s *Service) Recommendations(ctx context.Context, sess *Session, userID int64, out Sink) error {
	entries, err := s.store.RecentHistory(ctx, userID, 1)
	if err != nil {
		return fmt.Errorf("recent history: %w", err)
	}
	if len(entries) == 0 {
		return out.SendText(msgNoHistory)
	}

	seed := entries[0]
	out.Status(fmt.Sprintf("🔄 Ищу похожие треки на '%s' - %s...", seed.TrackName, seed.Artist))

	tracks, err := s.meta.SimilarTracks(ctx, seed.Artist, seed.TrackName, similarLimit)
	if err != nil {
		s.logger.Warn("similar tracks lookup failed",
			zap.String("artist", seed.Artist), zap.String("track", seed.TrackName), zap.Error(err))
		tracks = nil
	}
	if len(tracks) == 0 {
		out.Status(msgNoSimilar)
		return nil
	}

	sess.SetActive(TagSimilarTracks, tracks)
	return out.SendText(formatTrackList("💡 Рекомендации на основе твоей истории:", tracks,
		"Отправь номер трека для скачивания или название новой песни."))
}

// GenreMix builds a top-tracks list for the given tag.
func (s *Service) GenreMix(ctx context.Context, sess *Session, tag string, out Sink) error {
	out.Status(fmt.Sprintf("🔄 Создаю микс в жанре %s...", titleCase(tag)))

	tracks, err := s.meta.TopTracksByTag(ctx, tag, genreMixLimit)
	if err != nil {
		s.logger.Warn("genre mix lookup failed", zap.String("tag", tag), zap.Error(err))
		tracks = nil
	}
	if len(tracks) == 0 {
		out.Status(msgNoMix)
		return nil
	}

	sess.SetActive(TagGenreMix, tracks)
	header := fmt.Sprintf("🎼 Топ-%d треков в жанре %s:", len(tracks), titleCase(tag))
	return out.SendText(formatTrackList(header, tracks, "Отправь номер трека для скачивания."))
}

// History renders the user's ten most recent downloads.
func (s *Service) History(ctx context.Context, userID int64, out Sink) error {
	entries, err := s.store.RecentHistory(ctx, userID, historyLimit)
	if err != nil {
		return fmt.Errorf("recent history: %w", err)
	}
	if len(entries) == 0 {
		return out.SendText(msgEmptyHistory)
	}

	var b strings.Builder
	b.WriteString("📜 Твоя история (последние 10 треков):\n\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, e.Artist, e.TrackName)
	}
	return out.SendText(b.String())
}

// deliver is the shared fetch → send → record pipeline. The temp directory
// holding the file is removed on every exit path once the fetch succeeded;
// history is appended only after a successful send.
func (s *Service) deliver(ctx context.Context, userID int64, query, trackName, artist string, out Sink) error {
	out.Status(msgDownloading)

	path, err := s.fetcher.FetchAudio(ctx, query)
	if err != nil {
		s.logger.Warn("fetch failed", zap.String("query", query), zap.Error(err))
		out.Status(msgDownloadFailed)
		return nil
	}
	defer os.RemoveAll(filepath.Dir(path))

	out.Status(msgSending)
	if err := out.SendAudio(path, trackName, artist); err != nil {
		s.logger.Warn("send audio failed", zap.String("query", query), zap.Error(err))
		out.Status(msgSendFailed)
		return nil
	}

	if err := s.store.AppendHistory(ctx, userID, trackName, artist); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	out.DropStatus()
	return nil
}

// searchOrEmpty is where adapter failures are deliberately downgraded to an
// empty result set; the user sees "not found" either way.
func (s *Service) searchOrEmpty(ctx context.Context, query string, limit int) []lastfm.Track {
	tracks, err := s.meta.SearchTracks(ctx, query, limit)
	if err != nil {
		s.logger.Warn("metadata search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return tracks
}

func formatTrackList(header string, tracks []lastfm.Track, footer string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	for i, t := range tracks {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, t.Artist, t.Name)
	}
	b.WriteString("\n")
	b.WriteString(footer)
	return b.String()
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
