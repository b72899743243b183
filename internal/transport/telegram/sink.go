package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// chatSink delivers service replies into one chat. Status sends a message on
// first use and edits it in place afterwards; DropStatus deletes it.
type chatSink struct {
	bot      *Bot
	chatID   int64
	statusID int
}

func (s *chatSink) SendText(text string) error {
	_, err := s.bot.api.Send(tgbotapi.NewMessage(s.chatID, text))
	return err
}

func (s *chatSink) SendAudio(path, title, performer string) error {
	audio := tgbotapi.NewAudio(s.chatID, tgbotapi.FilePath(path))
	audio.Title = title
	audio.Performer = performer
	_, err := s.bot.api.Send(audio)
	return err
}

func (s *chatSink) Status(text string) {
	if s.statusID == 0 {
		sent, err := s.bot.api.Send(tgbotapi.NewMessage(s.chatID, text))
		if err != nil {
			s.bot.logger.Warn("status send failed", zap.Int64("chatID", s.chatID), zap.Error(err))
			return
		}
		s.statusID = sent.MessageID
		return
	}

	edit := tgbotapi.NewEditMessageText(s.chatID, s.statusID, text)
	if _, err := s.bot.api.Request(edit); err != nil {
		s.bot.logger.Warn("status edit failed", zap.Int64("chatID", s.chatID), zap.Error(err))
	}
}

func (s *chatSink) DropStatus() {
	if s.statusID == 0 {
		return
	}

	del := tgbotapi.NewDeleteMessage(s.chatID, s.statusID)
	if _, err := s.bot.api.Request(del); err != nil {
		s.bot.logger.Warn("status delete failed", zap.Int64("chatID", s.chatID), zap.Error(err))
	}
	s.statusID = 0
}

// editSink backs button actions: replies replace the menu message that was
// pressed, matching how the menus navigate.
type editSink struct {
	bot       *Bot
	chatID    int64
	messageID int
}

func (s *editSink) SendText(text string) error {
	_, err := s.bot.api.Request(tgbotapi.NewEditMessageText(s.chatID, s.messageID, text))
	return err
}

func (s *editSink) SendAudio(path, title, performer string) error {
	audio := tgbotapi.NewAudio(s.chatID, tgbotapi.FilePath(path))
	audio.Title = title
	audio.Performer = performer
	_, err := s.bot.api.Send(audio)
	return err
}

func (s *editSink) Status(text string) {
	if err := s.SendText(text); err != nil {
		s.bot.logger.Warn("status edit failed", zap.Int64("chatID", s.chatID), zap.Error(err))
	}
}

// DropStatus is a no-op: the edited menu message stays in the chat.
func (s *editSink) DropStatus() {}
