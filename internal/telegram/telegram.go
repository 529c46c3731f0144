// Package telegram adapts the Telegram Bot API to the bot.Transport
// boundary and drives the long-poll update loop.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/dkamalov/mediagrab/bot"
)

type Transport struct {
	api *tgbotapi.BotAPI
	log *zap.SugaredLogger
}

func New(token string) (*Transport, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return &Transport{api: api, log: zap.S().Named("telegram")}, nil
}

func (t *Transport) Username() string {
	return t.api.Self.UserName
}

func (t *Transport) SendText(chatID int64, text string) (bot.MessageRef, error) {
	sent, err := t.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return bot.MessageRef{}, err
	}
	return bot.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (t *Transport) EditText(ref bot.MessageRef, text string) error {
	_, err := t.api.Send(tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text))
	return err
}

func (t *Transport) DeleteMessage(ref bot.MessageRef) error {
	_, err := t.api.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	return err
}

func keyboard(buttons [][]bot.Button) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var tgRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			tgRow = append(tgRow, tgbotapi.NewInlineKeyboardButtonData(button.Label, button.Data))
		}
		rows = append(rows, tgRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (t *Transport) SendMenu(chatID int64, text, thumbnailPath string, buttons [][]bot.Button) (bot.MessageRef, error) {
	markup := keyboard(buttons)
	if thumbnailPath != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(thumbnailPath))
		photo.Caption = text
		photo.ReplyMarkup = markup
		sent, err := t.api.Send(photo)
		if err == nil {
			return bot.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
		}
		// Fall back to a plain text menu if the preview upload fails.
		t.log.Debugw("photo menu failed, sending text menu", "error", err)
	}
	message := tgbotapi.NewMessage(chatID, text)
	message.ReplyMarkup = markup
	sent, err := t.api.Send(message)
	if err != nil {
		return bot.MessageRef{}, err
	}
	return bot.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (t *Transport) SendAudioFile(chatID int64, path, title, performer string) (string, error) {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
	audio.Title = title
	audio.Performer = performer
	sent, err := t.api.Send(audio)
	if err != nil {
		return "", err
	}
	if sent.Audio != nil {
		return sent.Audio.FileID, nil
	}
	return "", nil
}

func (t *Transport) SendVideoFile(chatID int64, path, caption string) (string, error) {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	sent, err := t.api.Send(video)
	if err != nil {
		return "", err
	}
	if sent.Video != nil {
		return sent.Video.FileID, nil
	}
	return "", nil
}

func (t *Transport) SendCachedAudio(chatID int64, fileID, caption string) error {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FileID(fileID))
	audio.Caption = caption
	_, err := t.api.Send(audio)
	return err
}

func (t *Transport) SendCachedVideo(chatID int64, fileID, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID))
	video.Caption = caption
	_, err := t.api.Send(video)
	return err
}

func (t *Transport) AnswerCallback(callbackID, text string) error {
	_, err := t.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

// Run long-polls for updates and hands each one to the handler on its own
// goroutine, until the context is cancelled.
func (t *Transport) Run(ctx context.Context, handler *bot.Bot) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := t.api.GetUpdatesChan(updateConfig)
	t.log.Infow("long-polling for updates", "username", t.Username())

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			event, valid := toEvent(update)
			if !valid {
				continue
			}
			go handler.HandleEvent(ctx, event)
		}
	}
}

// toEvent translates a Telegram update into the transport-neutral event.
func toEvent(update tgbotapi.Update) (bot.Event, bool) {
	switch {
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		event := bot.Event{
			CallbackID:   query.ID,
			CallbackData: query.Data,
		}
		if query.Message != nil {
			event.ChatID = query.Message.Chat.ID
		}
		if query.From != nil {
			event.UserID = query.From.ID
			event.Username = query.From.UserName
			event.FirstName = query.From.FirstName
			event.Language = query.From.LanguageCode
		}
		return event, true
	case update.Message != nil && update.Message.Text != "":
		message := update.Message
		event := bot.Event{
			ChatID: message.Chat.ID,
			Text:   message.Text,
		}
		if message.From != nil {
			event.UserID = message.From.ID
			event.Username = message.From.UserName
			event.FirstName = message.From.FirstName
			event.Language = message.From.LanguageCode
		}
		return event, true
	default:
		return bot.Event{}, false
	}
}
