package scraper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iCCupCalico/bot/internal/scraper"
)

const profileHTML = `
<html><body>
<div class="profile-uname">ProGamer</div>
<table class="stata-body">
  <tr><td>Games played</td><td>120</td></tr>
  <tr><td>Win ratio</td><td>55%</td></tr>
  <tr><td>Location</td><td>Ukraine</td></tr>
  <tr><td>APM</td><td>140</td></tr>
</table>
<table class="t-table">
  <tr><th>#</th><th>Player</th><th>PTS</th><th>Games</th></tr>
  <tr><td>17</td><td>ProGamer</td><td>15340</td><td>120</td></tr>
</table>
</body></html>`

func TestExtractProfile(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(profileHTML))
	require.NoError(t, err)

	stats := scraper.Extract(doc)
	require.Equal(t, "ProGamer", stats.Username)
	require.Equal(t, 120, stats.GamesPlayed)
	require.NotNil(t, stats.WinRatio)
	require.InDelta(t, 55.0, *stats.WinRatio, 0.001)
	require.Equal(t, "15340", stats.Points)
	require.Equal(t, "17", stats.Rank)
	require.Equal(t, "Ukraine", stats.Location)
	require.False(t, stats.NoGames)

	// Derived from games * ratio.
	require.NotNil(t, stats.Wins)
	require.NotNil(t, stats.Losses)
	require.Equal(t, 66, *stats.Wins)
	require.Equal(t, 54, *stats.Losses)

	require.Len(t, stats.Extra, 1)
	require.Equal(t, "apm", stats.Extra[0].Name)
	require.Equal(t, "140", stats.Extra[0].Value)
}

func TestExtractEmptyProfileMeansNoGames(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><div class="profile-uname">Newbie</div></body></html>`))
	require.NoError(t, err)

	stats := scraper.Extract(doc)
	require.Equal(t, "Newbie", stats.Username)
	require.True(t, stats.NoGames)
}

func TestPlayerStatsFetchesProfilePage(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		_, _ = w.Write([]byte(profileHTML))
	}))
	defer server.Close()

	svc := scraper.NewService(server.URL, scraper.NewCache(nil, 0, zap.NewNop()), zap.NewNop())
	stats, err := svc.PlayerStats(context.Background(), "ProGamer")
	require.NoError(t, err)
	require.Equal(t, "/dota/gamingprofile/ProGamer.html", requestedPath)
	require.Equal(t, "ProGamer", stats.Username)
}

func TestPlayerStatsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>Player not found</body></html>`))
	}))
	defer server.Close()

	svc := scraper.NewService(server.URL, scraper.NewCache(nil, 0, zap.NewNop()), zap.NewNop())
	_, err := svc.PlayerStats(context.Background(), "nobody")
	require.ErrorIs(t, err, scraper.ErrPlayerNotFound)
}

func TestPlayerStatsEmptyNickname(t *testing.T) {
	svc := scraper.NewService("https://example.com", scraper.NewCache(nil, 0, zap.NewNop()), zap.NewNop())
	_, err := svc.PlayerStats(context.Background(), "   ")
	require.ErrorIs(t, err, scraper.ErrPlayerNotFound)
}
