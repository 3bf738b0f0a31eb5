package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrPlayerNotFound indicates the profile page does not exist for the
// requested nickname.
var ErrPlayerNotFound = errors.New("player not found")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Field is a generic labelled statistic preserved in page order.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PlayerStats holds everything extracted from a gaming profile page.
type PlayerStats struct {
	Username    string   `json:"username"`
	Points      string   `json:"points,omitempty"`
	Rank        string   `json:"rank,omitempty"`
	GamesPlayed int      `json:"games_played,omitempty"`
	WinRatio    *float64 `json:"win_ratio,omitempty"`
	Wins        *int     `json:"wins,omitempty"`
	Losses      *int     `json:"losses,omitempty"`
	Location    string   `json:"location,omitempty"`
	Extra       []Field  `json:"extra,omitempty"`
	NoGames     bool     `json:"no_games,omitempty"`
}

// Service fetches and parses player profiles, with a cache in front of the
// remote site.
type Service struct {
	client  *http.Client
	baseURL string
	cache   *Cache
	logger  *zap.Logger
}

// NewService builds the scraper.
func NewService(baseURL string, cache *Cache, logger *zap.Logger) *Service {
	return &Service{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   cache,
		logger:  logger,
	}
}

// PlayerStats returns statistics for the nickname, served from cache when
// fresh.
func (s *Service) PlayerStats(ctx context.Context, nickname string) (*PlayerStats, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, ErrPlayerNotFound
	}

	if stats, ok := s.cache.Get(ctx, nickname); ok {
		return stats, nil
	}

	stats, err := s.fetch(ctx, nickname)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, nickname, stats)
	return stats, nil
}

func (s *Service) fetch(ctx context.Context, nickname string) (*PlayerStats, error) {
	url := fmt.Sprintf("%s/dota/gamingprofile/%s.html", s.baseURL, nickname)
	s.logger.Info("scraping player stats", zap.String("nickname", nickname), zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPlayerNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing profile page: %w", err)
	}

	body := doc.Text()
	if strings.Contains(body, "Player not found") || strings.Contains(body, "Profile not found") {
		return nil, ErrPlayerNotFound
	}

	stats := Extract(doc)
	if stats.Username == "" {
		stats.Username = nickname
	}
	return stats, nil
}

// Extract pulls statistics out of a parsed profile page.
func Extract(doc *goquery.Document) *PlayerStats {
	stats := &PlayerStats{}

	stats.Username = strings.TrimSpace(doc.Find(".profile-uname").First().Text())

	doc.Find("table.stata-body tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		key := normalizeKey(cells.Eq(0).Text())
		value := strings.TrimSpace(cells.Eq(1).Text())
		if key == "" || value == "" {
			return
		}
		assignStat(stats, key, value)
	})

	// First data row of the rating table carries rank and points.
	doc.Find("table.t-table tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 {
			return true
		}
		cells := row.Find("td")
		if cells.Length() < 4 {
			return true
		}
		stats.Points = strings.TrimSpace(cells.Eq(2).Text())
		rank := strings.TrimSpace(cells.Eq(0).Text())
		if rank == "" || rank == "#" {
			rank = "Не в рейтинге"
		}
		stats.Rank = rank
		return false
	})

	if stats.WinRatio != nil && stats.GamesPlayed > 0 {
		wins := int(float64(stats.GamesPlayed) * (*stats.WinRatio / 100))
		losses := stats.GamesPlayed - wins
		stats.Wins = &wins
		stats.Losses = &losses
	}

	if stats.GamesPlayed == 0 && len(stats.Extra) == 0 && stats.Points == "" {
		stats.NoGames = true
	}
	return stats
}

func assignStat(stats *PlayerStats, key, value string) {
	switch key {
	case "games_played", "total_games":
		if games, err := strconv.Atoi(strings.ReplaceAll(value, " ", "")); err == nil {
			stats.GamesPlayed = games
			return
		}
	case "win_ratio", "winrate":
		cleaned := strings.TrimSuffix(value, "%")
		if ratio, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64); err == nil {
			stats.WinRatio = &ratio
			return
		}
	case "location":
		stats.Location = value
		return
	}
	stats.Extra = append(stats.Extra, Field{Name: key, Value: value})
}

func normalizeKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.TrimSuffix(key, ":")
	return strings.ReplaceAll(key, " ", "_")
}
