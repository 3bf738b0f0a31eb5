package command

import "strings"

// Main-menu button labels. The transport renders them on the reply keyboard
// and inbound text is matched against them exactly.
const (
	ButtonStats    = "📊 Статистика"
	ButtonContests = "🏆 Конкурсы"
	ButtonFAQ      = "🏆 F.A.Q"
	ButtonSupport  = "Техническая поддержка"
)

// MenuIntent enumerates main-menu selections.
type MenuIntent int

const (
	MenuUnknown MenuIntent = iota
	MenuStats
	MenuContests
	MenuFAQ
	MenuSupport
)

// MenuRows returns the main-menu keyboard layout, two buttons per row.
func MenuRows() [][]string {
	return [][]string{
		{ButtonStats, ButtonContests},
		{ButtonFAQ, ButtonSupport},
	}
}

// ClassifyMenu maps inbound text to a menu intent. Anything that is not an
// exact button label is MenuUnknown.
func ClassifyMenu(text string) MenuIntent {
	switch strings.TrimSpace(text) {
	case ButtonStats:
		return MenuStats
	case ButtonContests:
		return MenuContests
	case ButtonFAQ:
		return MenuFAQ
	case ButtonSupport:
		return MenuSupport
	}
	return MenuUnknown
}
