// Package club manages student club records through a write-through cache.
//
// The cache holds at most one in-memory instance per club id; every caller
// asking for a club gets the same *Club, so a field update made through one
// handle is visible to all of them. Mutations write the changed columns to
// the store first and update the cached copy only on success.
package club

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/chat"
	"github.com/qotdbot/qotdbot/internal/domain"
	"github.com/qotdbot/qotdbot/internal/repo"
)

// Club is the shared in-memory handle to one club row.
type Club struct {
	cache *Cache

	mu sync.Mutex
	d  domain.Club
}

// Cache is the club cache. The zero value is not usable; use NewCache.
type Cache struct {
	DB  *gorm.DB
	Log zerolog.Logger

	mu     sync.Mutex
	byID   map[int]*Club
	byName map[string]*Club
}

// NewCache builds an empty club cache over db.
func NewCache(db *gorm.DB, log zerolog.Logger) *Cache {
	return &Cache{
		DB:     db,
		Log:    log.With().Str("component", "club").Logger(),
		byID:   make(map[int]*Club),
		byName: make(map[string]*Club),
	}
}

// Create inserts a new club and returns its cached handle.
func (c *Cache) Create(ctx context.Context, d domain.Club) (*Club, error) {
	if err := repo.CreateClub(ctx, c.DB, &d); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admit(&d), nil
}

// Get returns the club with the given id, loading it on first access.
func (c *Cache) Get(ctx context.Context, id int) (*Club, error) {
	c.mu.Lock()
	if club, ok := c.byID[id]; ok {
		c.mu.Unlock()
		return club, nil
	}
	c.mu.Unlock()

	d, err := repo.GetClub(ctx, c.DB, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// lost the race: keep the instance admitted first
	if club, ok := c.byID[id]; ok {
		return club, nil
	}
	return c.admit(d), nil
}

// GetByName returns the club with the given unique name, loading it on first
// access.
func (c *Cache) GetByName(ctx context.Context, name string) (*Club, error) {
	c.mu.Lock()
	if club, ok := c.byName[name]; ok {
		c.mu.Unlock()
		return club, nil
	}
	c.mu.Unlock()

	d, err := repo.GetClubByName(ctx, c.DB, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if club, ok := c.byID[d.ID]; ok {
		return club, nil
	}
	return c.admit(d), nil
}

// List returns a handle for every club, admitting rows not yet cached.
func (c *Cache) List(ctx context.Context) ([]*Club, error) {
	rows, err := repo.ListClubs(ctx, c.DB)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Club, 0, len(rows))
	for i := range rows {
		if club, ok := c.byID[rows[i].ID]; ok {
			out = append(out, club)
			continue
		}
		out = append(out, c.admit(&rows[i]))
	}
	return out, nil
}

// admit registers a loaded row; the callee must hold c.mu.
func (c *Cache) admit(d *domain.Club) *Club {
	club := &Club{cache: c, d: *d}
	c.byID[d.ID] = club
	c.byName[d.Name] = club
	return club
}

// Snapshot returns a copy of the club's current fields.
func (cl *Club) Snapshot() domain.Club {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.d
}

// ID returns the club's store id.
func (cl *Club) ID() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.d.ID
}

// SetDesc updates the club description.
func (cl *Club) SetDesc(ctx context.Context, desc string) error {
	return cl.update(ctx, map[string]any{"desc": desc}, func(d *domain.Club) { d.Desc = desc })
}

// SetChannel updates the club's channel.
func (cl *Club) SetChannel(ctx context.Context, channel string) error {
	return cl.update(ctx, map[string]any{"channel": channel}, func(d *domain.Club) { d.Channel = channel })
}

// SetRole updates the club's member role.
func (cl *Club) SetRole(ctx context.Context, role string) error {
	return cl.update(ctx, map[string]any{"role": role}, func(d *domain.Club) { d.Role = role })
}

// SetManager updates the club's manager.
func (cl *Club) SetManager(ctx context.Context, userID string) error {
	return cl.update(ctx, map[string]any{"manager_id": userID}, func(d *domain.Club) { d.ManagerID = userID })
}

// SetMeeting updates the meeting time and location.
func (cl *Club) SetMeeting(ctx context.Context, when, where string) error {
	return cl.update(ctx, map[string]any{"meeting_time": when, "meeting_location": where}, func(d *domain.Club) {
		d.MeetingTime = when
		d.MeetingLocation = where
	})
}

// update writes columns to the store and applies the same change to the
// cached copy only when the write succeeded.
func (cl *Club) update(ctx context.Context, cols map[string]any, apply func(*domain.Club)) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if err := repo.UpdateClubColumns(ctx, cl.cache.DB, cl.d.ID, cols); err != nil {
		return err
	}
	apply(&cl.d)
	return nil
}

// InfoEmbed renders the club's info card.
func (cl *Club) InfoEmbed() chat.Embed {
	d := cl.Snapshot()
	e := chat.Embed{
		Title:       d.Name,
		Description: d.Desc,
	}
	if d.ManagerID != "" {
		e.Fields = append(e.Fields, chat.EmbedField{Name: "Manager", Value: chat.UserMention(d.ManagerID), Inline: true})
	}
	if d.Role != "" {
		e.Fields = append(e.Fields, chat.EmbedField{Name: "Role", Value: chat.RoleMention(d.Role), Inline: true})
	}
	if d.MeetingTime != "" || d.MeetingLocation != "" {
		v := d.MeetingTime
		if d.MeetingLocation != "" {
			if v != "" {
				v += ", "
			}
			v += d.MeetingLocation
		}
		e.Fields = append(e.Fields, chat.EmbedField{Name: "Meetings", Value: v})
	}
	return e
}
