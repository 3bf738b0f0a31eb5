package command_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iCCupCalico/bot/internal/command"
	"github.com/iCCupCalico/bot/pkg/util"
)

func TestParseReply(t *testing.T) {
	intent, err := command.Parse("/reply 1714550000 проверьте обновление лаунчера")
	require.NoError(t, err)
	require.Equal(t, command.KindReply, intent.Kind)
	require.Equal(t, int64(1714550000), intent.TicketID)
	require.Equal(t, "проверьте обновление лаунчера", intent.Text)
}

func TestParseReplyKeepsInnerWhitespace(t *testing.T) {
	intent, err := command.Parse("/reply 5   text  with   spacing")
	require.NoError(t, err)
	require.Equal(t, "text  with   spacing", intent.Text)
}

func TestParseClose(t *testing.T) {
	intent, err := command.Parse("/close 1714550000")
	require.NoError(t, err)
	require.Equal(t, command.KindClose, intent.Kind)
	require.Equal(t, int64(1714550000), intent.TicketID)
}

func TestParseMentionedCommands(t *testing.T) {
	// Telegram's command autocomplete in group chats appends the bot
	// mention; the command must still execute.
	intent, err := command.Parse("/close@iCCupSupportBot 42")
	require.NoError(t, err)
	require.Equal(t, command.KindClose, intent.Kind)
	require.Equal(t, int64(42), intent.TicketID)

	intent, err = command.Parse("/reply@iCCupSupportBot 42 проверьте обновление")
	require.NoError(t, err)
	require.Equal(t, command.KindReply, intent.Kind)
	require.Equal(t, int64(42), intent.TicketID)
	require.Equal(t, "проверьте обновление", intent.Text)
}

func TestParseMentionedMalformedStillHints(t *testing.T) {
	_, err := command.Parse("/close@iCCupSupportBot")
	require.Error(t, err)
	require.Equal(t, command.CloseUsage, util.ToDomainError(err).Message)
}

func TestParseMalformed(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		usage string
	}{
		{"reply without id", "/reply", command.ReplyUsage},
		{"reply without text", "/reply 42", command.ReplyUsage},
		{"reply non-numeric id", "/reply abc hello", command.ReplyUsage},
		{"close without id", "/close", command.CloseUsage},
		{"close non-numeric id", "/close abc", command.CloseUsage},
		{"close trailing garbage", "/close 42 now", command.CloseUsage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := command.Parse(tc.text)
			require.Error(t, err)
			require.Equal(t, util.CodeMalformedCommand, util.CodeOf(err))
			require.Equal(t, tc.usage, util.ToDomainError(err).Message,
				"usage hint is returned literally")
		})
	}
}

func TestParseNonCommandIsIgnored(t *testing.T) {
	for _, text := range []string{
		"hello there",
		"discussing /reply syntax",
		"/replyall 1 hi",
		"/closed 2",
		"",
	} {
		intent, err := command.Parse(text)
		require.NoError(t, err, "text %q", text)
		require.Equal(t, command.KindNone, intent.Kind, "text %q", text)
	}
}
