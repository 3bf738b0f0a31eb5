package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/iCCupCalico/bot/internal/command"
	"github.com/iCCupCalico/bot/internal/scraper"
	"github.com/iCCupCalico/bot/internal/service"
	"github.com/iCCupCalico/bot/internal/transport"
)

// Conversation states held per user between messages.
type state int

const (
	stateIdle state = iota
	stateAwaitingNickname
	stateAwaitingSupportMessage
)

const (
	msgWelcome = "Привет, %s! 👋\n\n" +
		"Я бот для получения статистики игроков DotA с сайта iccup.com. " +
		"С моей помощью вы можете быстро узнать рейтинг и достижения любого игрока!\n\n" +
		"Что я умею:\n" +
		"• Получать статистику игроков по никнейму\n" +
		"• Предоставлять полезную информацию об игре\n" +
		"• Сообщать о новых конкурсах и событиях\n\n" +
		"Используйте кнопки меню или команду /stats для начала работы."
	msgMainMenu      = "Главное меню:"
	msgAskNickname   = "Пожалуйста, введите никнейм игрока:"
	msgCancelled     = "Операция отменена. Вы в главном меню."
	msgStatsNotFound = "Не удалось найти игрока с никнеймом \"%s\". " +
		"Проверьте правильность написания и попробуйте снова.\n" +
		"Используйте команду /stats для нового поиска."
	msgStatsError = "Произошла ошибка при получении статистики. Пожалуйста, попробуйте позже.\n" +
		"Используйте команду /stats для нового поиска."
	msgContests = "🎭 <b>Актуальный конкурс: <a href='https://t.me/iCCup/6839'>Пародист</a></b>"
	msgFAQ      = "здесь будет FAQ"
	msgSupport  = "1. <a href='https://t.me/iCCupTech/2'>Существуют ли версии лаунчера для Mac OS и unix?</a>\n" +
		"2. <a href='https://t.me/iCCupTech/3'>Could not connect to Battle.Net／Не удалось установить соединение</a>\n\n" +
		"Если это не помогло, опишите вашу проблему одним сообщением — мы откроем тикет."
	msgHelp = "Для взаимодействия с ботом используйте кнопки меню или следующие команды:\n" +
		"/start - главное меню\n" +
		"/menu - показать меню\n" +
		"/stats - получить статистику игрока\n" +
		"/cancel - отменить текущую операцию"
)

// StatsProvider looks up player statistics by nickname.
type StatsProvider interface {
	PlayerStats(ctx context.Context, nickname string) (*scraper.PlayerStats, error)
}

// Bot drives user-facing conversations: the main menu, the stats lookup flow
// and the hand-off into the support-ticket flow. Operator-channel messages
// are passed straight to the router.
type Bot struct {
	messenger    transport.Messenger
	router       *service.TicketRouter
	stats        StatsProvider
	logger       *zap.Logger
	operatorChat int64

	mu       sync.Mutex
	sessions map[int64]state
}

// Dependencies bundles bot collaborators.
type Dependencies struct {
	Messenger    transport.Messenger
	Router       *service.TicketRouter
	Stats        StatsProvider
	Logger       *zap.Logger
	OperatorChat int64
}

// New constructs the bot.
func New(deps Dependencies) *Bot {
	return &Bot{
		messenger:    deps.Messenger,
		router:       deps.Router,
		stats:        deps.Stats,
		logger:       deps.Logger,
		operatorChat: deps.OperatorChat,
		sessions:     make(map[int64]state),
	}
}

// Run consumes inbound messages until the channel closes or ctx is
// cancelled. Events are handled one at a time; the transport loop is the
// only producer.
func (b *Bot) Run(ctx context.Context, updates <-chan transport.Inbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			b.handle(ctx, msg)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg transport.Inbound) {
	if msg.ChatID == b.operatorChat {
		if err := b.router.HandleOperatorMessage(ctx, msg); err != nil {
			b.logger.Error("operator command failed", zap.Error(err))
		}
		return
	}
	b.handleUser(ctx, msg)
}

func (b *Bot) handleUser(ctx context.Context, msg transport.Inbound) {
	if name, args, ok := parseCommand(msg.Text); ok {
		b.handleCommand(ctx, msg, name, args)
		return
	}

	switch b.stateOf(msg.SenderID) {
	case stateAwaitingNickname:
		b.setState(msg.SenderID, stateIdle)
		b.lookupStats(ctx, msg.ChatID, msg.Text)
		return
	case stateAwaitingSupportMessage:
		// Stay in the support flow; follow-ups append to the open ticket.
		b.fileSupportMessage(ctx, msg)
		return
	case stateIdle:
	}

	switch command.ClassifyMenu(msg.Text) {
	case command.MenuStats:
		b.setState(msg.SenderID, stateAwaitingNickname)
		b.send(ctx, msg.ChatID, msgAskNickname)
	case command.MenuContests:
		b.send(ctx, msg.ChatID, msgContests)
	case command.MenuFAQ:
		b.send(ctx, msg.ChatID, msgFAQ)
	case command.MenuSupport:
		b.setState(msg.SenderID, stateAwaitingSupportMessage)
		b.send(ctx, msg.ChatID, msgSupport)
	case command.MenuUnknown:
		// A requester with an open ticket keeps talking to support even if
		// the in-memory session was lost, e.g. across a restart.
		if _, ok := b.router.OpenTicketFor(msg.SenderID); ok {
			b.fileSupportMessage(ctx, msg)
			return
		}
		b.sendMenu(ctx, msg.ChatID, msgHelp)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg transport.Inbound, name, args string) {
	switch name {
	case "start":
		b.setState(msg.SenderID, stateIdle)
		firstName := firstWord(msg.FullName)
		b.sendMenu(ctx, msg.ChatID, fmt.Sprintf(msgWelcome, firstName))
	case "menu":
		b.setState(msg.SenderID, stateIdle)
		b.sendMenu(ctx, msg.ChatID, msgMainMenu)
	case "stats":
		if nickname := strings.TrimSpace(args); nickname != "" {
			b.lookupStats(ctx, msg.ChatID, nickname)
			return
		}
		b.setState(msg.SenderID, stateAwaitingNickname)
		b.send(ctx, msg.ChatID, msgAskNickname)
	case "cancel":
		b.setState(msg.SenderID, stateIdle)
		b.sendMenu(ctx, msg.ChatID, msgCancelled)
	default:
		b.sendMenu(ctx, msg.ChatID, msgHelp)
	}
}

func (b *Bot) fileSupportMessage(ctx context.Context, msg transport.Inbound) {
	if err := b.router.HandleUserMessage(ctx, msg); err != nil {
		b.logger.Error("support message failed", zap.Int64("sender_id", msg.SenderID), zap.Error(err))
	}
}

func (b *Bot) lookupStats(ctx context.Context, chatID int64, nickname string) {
	nickname = strings.TrimSpace(nickname)
	b.logger.Info("stats requested", zap.Int64("chat_id", chatID), zap.String("nickname", nickname))

	if err := b.messenger.Typing(ctx, chatID); err != nil {
		b.logger.Debug("chat action failed", zap.Error(err))
	}

	stats, err := b.stats.PlayerStats(ctx, nickname)
	if err != nil {
		if errors.Is(err, scraper.ErrPlayerNotFound) {
			b.sendMenu(ctx, chatID, fmt.Sprintf(msgStatsNotFound, nickname))
			return
		}
		b.logger.Error("stats lookup failed", zap.String("nickname", nickname), zap.Error(err))
		b.sendMenu(ctx, chatID, msgStatsError)
		return
	}
	b.send(ctx, chatID, FormatStats(nickname, stats))
}

func (b *Bot) stateOf(userID int64) state {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[userID]
}

func (b *Bot) setState(userID int64, next state) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if next == stateIdle {
		delete(b.sessions, userID)
		return
	}
	b.sessions[userID] = next
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if _, err := b.messenger.Send(ctx, chatID, text); err != nil {
		b.logger.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendMenu(ctx context.Context, chatID int64, text string) {
	if _, err := b.messenger.SendKeyboard(ctx, chatID, text, command.MenuRows()); err != nil {
		b.logger.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// parseCommand splits "/name args" text. Returns ok=false for plain text.
func parseCommand(text string) (name, args string, ok bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}
	idx := strings.IndexFunc(trimmed, unicode.IsSpace)
	if idx < 0 {
		name = trimmed[1:]
	} else {
		name = trimmed[1:idx]
		args = strings.TrimSpace(trimmed[idx:])
	}
	// Commands in groups may carry the bot mention: /stats@SomeBot.
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return name, args, name != ""
}

func firstWord(fullName string) string {
	if word := firstToken(fullName); word != "" {
		return word
	}
	return "игрок"
}

func firstToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
