// Package game implements the game-night rotation: a catalog of games
// maintained by moderators, with a weekly pick (random or forced) announced
// in the game channel together with the two fixed Saturday session times.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/chat"
	"github.com/qotdbot/qotdbot/internal/domain"
	"github.com/qotdbot/qotdbot/internal/repo"
)

// Session times on game night, local wall clock.
var sessionTimes = []struct{ Hour, Minute int }{
	{13, 30},
	{18, 0},
}

// ErrNoGames is returned by a random pick over an empty catalog.
var ErrNoGames = errors.New("no games in the rotation")

// Rotation is the game rotation service.
type Rotation struct {
	DB     *gorm.DB
	Client chat.Client
	// Channel receives the announcements.
	Channel string
	Log     zerolog.Logger

	// Now and Intn are the clock and random source; tests override them.
	Now  func() time.Time
	Intn func(n int) int
}

// NewRotation builds the rotation service posting to channel.
func NewRotation(db *gorm.DB, client chat.Client, channel string, log zerolog.Logger) *Rotation {
	return &Rotation{
		DB:      db,
		Client:  client,
		Channel: channel,
		Log:     log.With().Str("component", "game").Logger(),
	}
}

// Add puts a new game into the catalog. Names are unique; adding an existing
// name fails with the database constraint error.
func (r *Rotation) Add(ctx context.Context, name, downloadLink, imageLink string) (*domain.Game, error) {
	g, err := repo.CreateGame(ctx, r.DB, name, downloadLink, imageLink)
	if err != nil {
		return nil, err
	}
	r.Log.Info().Str("name", name).Msg("game added")
	return g, nil
}

// List returns the catalog in insertion order.
func (r *Rotation) List(ctx context.Context) ([]domain.Game, error) {
	return repo.ListGames(ctx, r.DB)
}

// Pick selects the game for the coming Saturday and posts the announcement.
// An empty name picks uniformly at random from the catalog; a given name
// forces that game.
func (r *Rotation) Pick(ctx context.Context, name string) (*domain.Game, error) {
	var g *domain.Game
	var err error
	if name != "" {
		g, err = repo.GetGameByName(ctx, r.DB, name)
		if err != nil {
			return nil, err
		}
	} else {
		games, err := repo.ListGames(ctx, r.DB)
		if err != nil {
			return nil, err
		}
		if len(games) == 0 {
			return nil, ErrNoGames
		}
		g = &games[r.intn(len(games))]
	}

	saturday := NextSaturday(r.now())
	embed := Announcement(g, saturday)
	if _, err := r.Client.SendMessage(ctx, r.Channel, "", embed); err != nil {
		return nil, err
	}

	r.Log.Info().Str("name", g.Name).Time("saturday", saturday).Msg("game night announced")
	return g, nil
}

// NextSaturday returns the upcoming Saturday at midnight in now's location.
// On a Saturday it returns the same day, so an announcement made on game day
// still points at that evening's sessions.
func NextSaturday(now time.Time) time.Time {
	days := (int(time.Saturday) - int(now.Weekday()) + 7) % 7
	day := now.AddDate(0, 0, days)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
}

// Announcement renders the game-night embed: the picked game, its download
// link, and the session times as platform-rendered timestamps.
func Announcement(g *domain.Game, saturday time.Time) chat.Embed {
	var b strings.Builder
	b.WriteString("This Saturday we are playing **" + g.Name + "**!\n\n")
	for _, s := range sessionTimes {
		at := time.Date(saturday.Year(), saturday.Month(), saturday.Day(), s.Hour, s.Minute, 0, 0, saturday.Location())
		fmt.Fprintf(&b, "Session at <t:%d:t> (<t:%d:R>)\n", at.Unix(), at.Unix())
	}
	if g.DownloadLink != "" {
		b.WriteString("\nGet it here: " + g.DownloadLink)
	}

	return chat.Embed{
		Title:       "Game night",
		Description: b.String(),
		ImageURL:    g.ImageLink,
	}
}

func (r *Rotation) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Rotation) intn(n int) int {
	if r.Intn != nil {
		return r.Intn(n)
	}
	return rand.Intn(n)
}
