package command

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/iCCupCalico/bot/pkg/util"
)

// Kind enumerates operator intents. Dispatch over it must be exhaustive.
type Kind int

const (
	// KindNone marks operator text that is not a command and must be ignored.
	KindNone Kind = iota
	KindReply
	KindClose
)

// Literal usage hints shown to the operator on a malformed command.
const (
	ReplyUsage = "Используйте команду так: /reply <ticket_id> <текст ответа>"
	CloseUsage = "Используйте команду так: /close <ticket_id>"
)

// Intent is a parsed operator command.
type Intent struct {
	Kind     Kind
	TicketID int64
	Text     string
}

// Parse turns operator-channel text into a structured intent. Text that does
// not start with a known command is not an error; it comes back as KindNone.
func Parse(text string) (Intent, error) {
	trimmed := strings.TrimSpace(text)
	switch stripMention(firstToken(trimmed)) {
	case "/reply":
		return parseReply(trimmed)
	case "/close":
		return parseClose(trimmed)
	}
	return Intent{Kind: KindNone}, nil
}

func parseReply(text string) (Intent, error) {
	parts := splitTokens(text, 3)
	if len(parts) != 3 {
		return Intent{}, util.NewMalformedCommand(ReplyUsage)
	}
	ticketID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Intent{}, util.NewMalformedCommand(ReplyUsage)
	}
	return Intent{Kind: KindReply, TicketID: ticketID, Text: parts[2]}, nil
}

func parseClose(text string) (Intent, error) {
	parts := splitTokens(text, 2)
	if len(parts) != 2 {
		return Intent{}, util.NewMalformedCommand(CloseUsage)
	}
	ticketID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Intent{}, util.NewMalformedCommand(CloseUsage)
	}
	return Intent{Kind: KindClose, TicketID: ticketID}, nil
}

// stripMention drops the @BotName suffix Telegram's command autocomplete
// appends in group chats, where the operator channel lives.
func stripMention(token string) string {
	if at := strings.IndexByte(token, '@'); at >= 0 {
		return token[:at]
	}
	return token
}

func firstToken(text string) string {
	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx < 0 {
		return text
	}
	return text[:idx]
}

// splitTokens splits on whitespace runs into at most maxParts parts, keeping
// the remainder of the line intact in the last part so reply text survives
// verbatim.
func splitTokens(text string, maxParts int) []string {
	parts := make([]string, 0, maxParts)
	rest := strings.TrimSpace(text)
	for len(parts) < maxParts-1 {
		idx := strings.IndexFunc(rest, unicode.IsSpace)
		if idx < 0 {
			break
		}
		parts = append(parts, rest[:idx])
		rest = strings.TrimLeftFunc(rest[idx:], unicode.IsSpace)
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}
