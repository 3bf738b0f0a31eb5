package command_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iCCupCalico/bot/internal/command"
)

func TestClassifyMenu(t *testing.T) {
	cases := []struct {
		text string
		want command.MenuIntent
	}{
		{command.ButtonStats, command.MenuStats},
		{" " + command.ButtonStats + " ", command.MenuStats},
		{command.ButtonContests, command.MenuContests},
		{command.ButtonFAQ, command.MenuFAQ},
		{command.ButtonSupport, command.MenuSupport},
		{"random text", command.MenuUnknown},
		{"", command.MenuUnknown},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, command.ClassifyMenu(tc.text), "text %q", tc.text)
	}
}

func TestMenuRowsCoverEveryButton(t *testing.T) {
	seen := map[string]bool{}
	for _, row := range command.MenuRows() {
		for _, label := range row {
			seen[label] = true
		}
	}
	require.True(t, seen[command.ButtonStats])
	require.True(t, seen[command.ButtonContests])
	require.True(t, seen[command.ButtonFAQ])
	require.True(t, seen[command.ButtonSupport])
}
