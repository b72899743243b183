// Package telegram is the chat transport: long polling, command and button
// dispatch, and delivery of text and audio replies.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"melodyforge-bot/internal/services/music"
	"melodyforge-bot/internal/store"
)

const (
	messageTimeout  = 2 * time.Minute
	callbackTimeout = 30 * time.Second
)

const (
	welcomeText = "🎶 Добро пожаловать в MelodyForge!\n\n" +
		"Я помогу тебе найти и скачать любимую музыку.\n\n" +
		"📌 Выбери режим работы:\n" +
		"• Базовый — простой поиск музыки\n" +
		"• Расширенный — рекомендации, плейлисты, миксы"
	returnText = "🎶 MelodyForge\n\nВыбери режим работы:"
	errorText  = "❌ Произошла ошибка. Попробуй позже."
)

// Bot wraps Telegram API interactions.
type Bot struct {
	api      *tgbotapi.BotAPI
	service  *music.Service
	sessions *music.Sessions
	logger   *zap.Logger
}

// NewBot constructs a bot instance.
func NewBot(token string, service *music.Service, logger *zap.Logger) (*Bot, error) {
	if service == nil {
		return nil, fmt.Errorf("music service is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = false

	return &Bot{
		api:      api,
		service:  service,
		sessions: music.NewSessions(),
		logger:   logger,
	}, nil
}

// Start begins long polling and handles incoming updates.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 10

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate dispatches one update; a panic here must not take the
// process down with it.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while handling update", zap.Any("panic", r))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Command() != "start" || msg.From == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, callbackTimeout)
	defer cancel()

	if err := b.service.EnsureProfile(ctx, msg.From.ID); err != nil {
		b.logger.Error("ensure profile failed", zap.Int64("userID", msg.From.ID), zap.Error(err))
		b.sendText(msg.Chat.ID, errorText)
		return
	}

	welcome := tgbotapi.NewMessage(msg.Chat.ID, welcomeText)
	welcome.ReplyMarkup = modeKeyboard()
	if _, err := b.api.Send(welcome); err != nil {
		b.logger.Warn("welcome send failed", zap.Error(err))
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, messageTimeout)
	defer cancel()

	sess := b.sessions.Get(msg.Chat.ID)
	sink := &chatSink{bot: b, chatID: msg.Chat.ID}

	if err := b.service.HandleText(ctx, sess, msg.From.ID, msg.Text, sink); err != nil {
		b.logger.Error("handle message failed", zap.Int64("userID", msg.From.ID), zap.Error(err))
		b.sendText(msg.Chat.ID, errorText)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	act := parseAction(cb.Data)
	if act.kind == actionUnknown || cb.Message == nil {
		return
	}

	// Ack right away so the button stops spinning.
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(ctx, callbackTimeout)
	defer cancel()

	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	userID := cb.From.ID
	sink := &editSink{bot: b, chatID: chatID, messageID: messageID}

	var err error
	switch act.kind {
	case actionModeBasic:
		if err = b.service.SetMode(ctx, userID, store.ModeBasic); err == nil {
			b.editText(chatID, messageID,
				"✅ Базовый режим активирован!\n\n"+
					"Просто отправь мне название песни или исполнителя, и я найду музыку для тебя.")
		}
	case actionModeAdvanced:
		if err = b.service.SetMode(ctx, userID, store.ModeAdvanced); err == nil {
			b.editWithKeyboard(chatID, messageID,
				"✅ Расширенный режим активирован!\n\nВыбери действие:", advancedKeyboard())
		}
	case actionSearch:
		b.editText(chatID, messageID, "🔍 Отправь название песни или исполнителя для поиска.")
	case actionRecommendations:
		err = b.service.Recommendations(ctx, b.sessions.Get(chatID), userID, sink)
	case actionGenreMenu:
		b.editWithKeyboard(chatID, messageID, "🎼 Выбери жанр для микса:", genreKeyboard())
	case actionGenre:
		err = b.service.GenreMix(ctx, b.sessions.Get(chatID), act.genre, sink)
	case actionHistory:
		err = b.service.History(ctx, userID, sink)
	case actionBack:
		b.editWithKeyboard(chatID, messageID, returnText, modeKeyboard())
	}

	if err != nil {
		b.logger.Error("callback handling failed",
			zap.String("data", cb.Data), zap.Int64("userID", userID), zap.Error(err))
		b.editText(chatID, messageID, errorText)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("send text failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	if _, err := b.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.logger.Warn("edit text failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (b *Bot) editWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	if _, err := b.api.Request(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)); err != nil {
		b.logger.Warn("edit with keyboard failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func modeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎵 Базовый режим", "mode_basic")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎸 Расширенный режим", "mode_advanced")),
	)
}

func advancedKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔍 Поиск музыки", "search")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💡 Рекомендации", "recommendations")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎼 Микс по жанру", "genre_mix")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📜 История", "history")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", "back_to_start")),
	)
}

func genreKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎸 Rock", "genre_rock")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎹 Pop", "genre_pop")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎺 Jazz", "genre_jazz")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎤 Hip-Hop", "genre_hip hop")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎼 Electronic", "genre_electronic")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", "mode_advanced")),
	)
}
