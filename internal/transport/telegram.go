package transport

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/iCCupCalico/bot/internal/config"
)

// Telegram is the long-poll chat client. It implements Messenger and owns the
// inbound update stream.
type Telegram struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	logger      *zap.Logger
}

// NewTelegram authenticates against the Bot API.
func NewTelegram(cfg config.TelegramConfig, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	logger.Info("authorized on telegram", zap.String("account", api.Self.UserName))
	return &Telegram{api: api, pollTimeout: cfg.PollTimeoutSeconds, logger: logger}, nil
}

// Send delivers an HTML-formatted message to the given chat and returns the
// message id.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return t.send(msg)
}

// SendKeyboard delivers a message with a persistent reply keyboard attached.
func (t *Telegram) SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	keyboardRows := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		keyboardRows = append(keyboardRows, buttons)
	}
	keyboard := tgbotapi.NewReplyKeyboard(keyboardRows...)
	keyboard.ResizeKeyboard = true
	msg.ReplyMarkup = keyboard

	return t.send(msg)
}

// Typing shows the "typing..." chat action while a lookup is in flight.
func (t *Telegram) Typing(ctx context.Context, chatID int64) error {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, err := t.api.Request(action)
	return err
}

// Updates converts the Bot API update stream into Inbound messages. The
// channel closes when ctx is cancelled. Non-text updates are dropped here so
// downstream code only ever sees complete messages.
func (t *Telegram) Updates(ctx context.Context) <-chan Inbound {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = t.pollTimeout

	updates := t.api.GetUpdatesChan(updateCfg)
	inbound := make(chan Inbound)

	go func() {
		defer close(inbound)
		for {
			select {
			case <-ctx.Done():
				t.api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg, ok := toInbound(update)
				if !ok {
					continue
				}
				select {
				case inbound <- msg:
				case <-ctx.Done():
					t.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return inbound
}

func (t *Telegram) send(msg tgbotapi.MessageConfig) (int, error) {
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func toInbound(update tgbotapi.Update) (Inbound, bool) {
	message := update.Message
	if message == nil || message.From == nil || message.Text == "" {
		return Inbound{}, false
	}
	fullName := strings.TrimSpace(strings.TrimSpace(message.From.FirstName) + " " + strings.TrimSpace(message.From.LastName))
	return Inbound{
		SenderID:   message.From.ID,
		Username:   message.From.UserName,
		FullName:   fullName,
		ChatID:     message.Chat.ID,
		Text:       message.Text,
		ReceivedAt: message.Time(),
	}, true
}
