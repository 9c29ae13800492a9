package poll

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/chat"
	"github.com/qotdbot/qotdbot/internal/domain"
	"github.com/qotdbot/qotdbot/internal/metrics"
	"github.com/qotdbot/qotdbot/internal/repo"
	"github.com/qotdbot/qotdbot/internal/utils"
)

// Mega is the menu-variant voting machine. A button on the poll message opens
// an ephemeral multi-select pre-filled with the user's current selections; a
// submit replaces the user's selection set with the submitted one and
// re-renders the menu so its defaults reflect the just-saved state.
//
// Unlike the reaction variant, multiple simultaneous selections are the
// point: a mega poll is a running checklist, not a single-choice vote, and
// has no distinct closed rendering.
type Mega struct {
	DB     *gorm.DB
	Client chat.Client
	Log    zerolog.Logger

	mu      sync.Mutex
	buttons map[string]int    // button custom id -> poll id
	menus   map[string]string // menu custom id -> button custom id
	// userMenus keys button custom id + user id to that user's live menu, so
	// a re-press replaces the previous routing entry instead of growing the
	// registry for every press.
	userMenus map[string]string
}

// NewMega builds a menu voting machine.
func NewMega(db *gorm.DB, client chat.Client, log zerolog.Logger) *Mega {
	return &Mega{
		DB:        db,
		Client:    client,
		Log:       log.With().Str("component", "megapoll").Logger(),
		buttons:   make(map[string]int),
		menus:     make(map[string]string),
		userMenus: make(map[string]string),
	}
}

// Create persists a new mega poll, posts its message with the vote button,
// and attaches the machine.
func (m *Mega) Create(ctx context.Context, title, authorID, channelID string, options []string) (*domain.MegaPoll, error) {
	if len(options) == 0 {
		return nil, ErrNoOptions
	}

	p, err := repo.CreateMegaPoll(ctx, m.DB, title, authorID, uuid.NewString(), options)
	if err != nil {
		return nil, err
	}

	embed := RenderMega(p)
	msg, err := m.Client.SendButtonMessage(ctx, channelID, "", &embed, chat.Button{
		CustomID: p.ButtonID,
		Label:    "Vote",
	})
	if err != nil {
		return nil, err
	}

	if err := repo.SetMegaPollMessage(ctx, m.DB, p.ID, channelID, msg.ID); err != nil {
		return nil, err
	}
	p.Channel = channelID
	p.Link = msg.ID

	m.Attach(p)
	return p, nil
}

// Attach registers the poll's button so its presses reach this machine. Used
// at creation and during recovery of open mega polls.
func (m *Mega) Attach(p *domain.MegaPoll) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buttons[p.ButtonID] = p.ID
}

// HandleButton answers a vote-button press with an ephemeral menu pre-filled
// with the user's current selections. Returns false for buttons this machine
// does not own.
func (m *Mega) HandleButton(ctx context.Context, it chat.Interaction) bool {
	m.mu.Lock()
	_, ok := m.buttons[it.CustomID()]
	m.mu.Unlock()
	if !ok {
		return false
	}

	// fresh read: the registry only routes, the store decides
	p, err := repo.GetMegaPollByButton(ctx, m.DB, it.CustomID())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			m.mu.Lock()
			delete(m.buttons, it.CustomID())
			m.mu.Unlock()
		}
		return false
	}
	if !p.Open {
		return false
	}

	menu, err := m.buildMenu(ctx, p, it.UserID())
	if err != nil {
		m.Log.Error().Err(err).Int("poll_id", p.ID).Msg("menu build failed")
		return false
	}

	key := p.ButtonID + "/" + it.UserID()
	m.mu.Lock()
	if old, ok := m.userMenus[key]; ok {
		delete(m.menus, old)
	}
	m.userMenus[key] = menu.CustomID
	m.menus[menu.CustomID] = p.ButtonID
	m.mu.Unlock()

	if err := it.RespondMenu(ctx, "Vote", menu); err != nil {
		m.Log.Error().Err(err).Int("poll_id", p.ID).Msg("menu respond failed")
		return false
	}
	return true
}

// HandleSelect applies a menu submission: the user's stored selection set is
// replaced by the submitted one (symmetric difference, disconnects before
// connects), then the menu is re-rendered from the store so defaults show
// the saved state. Returns false for menus this machine does not own.
func (m *Mega) HandleSelect(ctx context.Context, it chat.Interaction) bool {
	m.mu.Lock()
	buttonID, ok := m.menus[it.CustomID()]
	m.mu.Unlock()
	if !ok {
		return false
	}

	p, err := repo.GetMegaPollByButton(ctx, m.DB, buttonID)
	if err != nil {
		return false
	}

	valid := make(map[int]bool, len(p.Options))
	for _, o := range p.Options {
		valid[o.ID] = true
	}

	submitted := make(map[int]bool, len(it.Values()))
	for _, v := range it.Values() {
		id, err := strconv.Atoi(v)
		if err != nil || !valid[id] {
			// unknown option id: no-op, the rest of the submission still counts
			continue
		}
		submitted[id] = true
	}

	prior, err := repo.MegaSelectionsForUser(ctx, m.DB, p.ID, it.UserID())
	if err != nil {
		m.Log.Error().Err(err).Int("poll_id", p.ID).Msg("selection lookup failed")
		return false
	}

	if _, err := repo.EnsureMember(ctx, m.DB, it.UserID()); err != nil {
		m.Log.Error().Err(err).Str("user_id", it.UserID()).Msg("ensure member failed")
		return false
	}

	for _, id := range prior {
		if !submitted[id] {
			if err := repo.DisconnectMegaVote(ctx, m.DB, id, it.UserID()); err != nil {
				m.Log.Error().Err(err).Int("option_id", id).Msg("revoke failed")
				return false
			}
		}
	}
	priorSet := make(map[int]bool, len(prior))
	for _, id := range prior {
		priorSet[id] = true
	}
	for id := range submitted {
		if !priorSet[id] {
			if err := repo.ConnectMegaVote(ctx, m.DB, id, it.UserID()); err != nil {
				m.Log.Error().Err(err).Int("option_id", id).Msg("connect failed")
				return false
			}
		}
	}

	// re-render from the store so the menu defaults show the saved state
	menu, err := m.buildMenu(ctx, p, it.UserID())
	if err != nil {
		m.Log.Error().Err(err).Int("poll_id", p.ID).Msg("menu rebuild failed")
		return false
	}
	menu.CustomID = it.CustomID()

	if err := it.UpdateMenu(ctx, "Vote counted. You can change your vote anytime.", menu); err != nil {
		m.Log.Error().Err(err).Int("poll_id", p.ID).Msg("menu update failed")
		return false
	}

	metrics.VotesProcessed.WithLabelValues("mega").Inc()
	return true
}

// buildMenu constructs the ephemeral multi-select for one user: every option
// of the poll, with the user's current selections marked default. Option
// values are the stable option ids.
func (m *Mega) buildMenu(ctx context.Context, p *domain.MegaPoll, userID string) (chat.Menu, error) {
	selected, err := repo.MegaSelectionsForUser(ctx, m.DB, p.ID, userID)
	if err != nil {
		return chat.Menu{}, err
	}
	sel := make(map[int]bool, len(selected))
	for _, id := range selected {
		sel[id] = true
	}

	menu := chat.Menu{
		CustomID:  uuid.NewString(),
		MaxValues: len(p.Options),
	}
	for _, o := range p.Options {
		menu.Options = append(menu.Options, chat.MenuOption{
			Label:   utils.Shorten(o.Label, 100),
			Value:   strconv.Itoa(o.ID),
			Default: sel[o.ID],
		})
	}
	return menu, nil
}
