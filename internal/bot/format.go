package bot

import (
	"fmt"
	"strings"

	"github.com/iCCupCalico/bot/internal/scraper"
)

// Human-readable labels for well-known extra statistics.
var niceNames = map[string]string{
	"apm":                "APM",
	"farm":               "Фарм",
	"experience_per_min": "Опыт в минуту",
	"gank_participation": "Участие в ганках",
	"total_match_time":   "Общее время матчей",
	"avg_match_time":     "Среднее время матча",
	"leave_rate":         "Процент выходов",
}

// FormatStats renders player statistics as an HTML chat message.
func FormatStats(nickname string, stats *scraper.PlayerStats) string {
	displayName := stats.Username
	if displayName == "" {
		displayName = nickname
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Статистика игрока %s:</b>\n\n", displayName)

	if stats.NoGames {
		sb.WriteString("😢 <b>Игрок еще не сыграл ни одной игры</b>\n")
		sb.WriteString("\n<i>Данные получены с сайта iccup.com</i>")
		return sb.String()
	}

	if stats.Points != "" {
		fmt.Fprintf(&sb, "🏅 <b>PTS:</b> %s\n", stats.Points)
	}
	if stats.Rank != "" {
		fmt.Fprintf(&sb, "<code>Ранг</code> %s\n", stats.Rank)
	}
	if stats.GamesPlayed > 0 {
		fmt.Fprintf(&sb, "<code>Всего игр:</code> %d\n", stats.GamesPlayed)
		if stats.WinRatio != nil {
			fmt.Fprintf(&sb, "📊 <b>Процент побед:</b> %.1f%%\n", *stats.WinRatio)
		}
	}
	if stats.Wins != nil && stats.Losses != nil {
		fmt.Fprintf(&sb, "✅ <b>Победы/Поражения:</b> %d / %d\n", *stats.Wins, *stats.Losses)
	}
	if stats.Location != "" {
		fmt.Fprintf(&sb, "🌍 <b>Локация:</b> %s\n", stats.Location)
	}

	for _, field := range stats.Extra {
		label, ok := niceNames[field.Name]
		if !ok {
			label = titleize(field.Name)
		}
		fmt.Fprintf(&sb, "📊 <b>%s:</b> %s\n", label, field.Value)
	}

	sb.WriteString("\n<i>Данные получены с сайта iccup.com</i>")
	return sb.String()
}

func titleize(key string) string {
	words := strings.Split(key, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
