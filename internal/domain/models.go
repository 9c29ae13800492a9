// Package domain defines the persistence models for questions, polls, votes,
// the send queue, clubs, and games. These types are mapped with GORM and form
// the core data layer of the bot.
package domain

import (
	"time"
)

// Member mirrors a chat-platform user that the bot has interacted with.
// It carries the reward ledger: XP and fractional "save" credits granted on
// first votes.
//
// Fields:
//   - ID: the platform snowflake, stored as a string primary key.
//   - XP: accumulated experience points.
//   - Saves: fractional save credits.
type Member struct {
	ID        string    `json:"id"    gorm:"type:varchar(32);primaryKey"`
	XP        int       `json:"xp"    gorm:"not null;default:0"`
	Saves     float64   `json:"saves" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Member.
func (Member) TableName() string { return "members" }

// Question is a queued "question of the day" entry. A question is either a
// plain-text prompt or a structured embed submitted as raw JSON.
//
// Lifecycle: created unasked, dequeued and posted exactly once (Asked=true,
// Link and Date set), never revisited.
type Question struct {
	ID        int        `json:"id"        gorm:"primaryKey;autoIncrement"`
	Prompt    string     `json:"prompt"    gorm:"type:text;not null"`
	IsEmbed   bool       `json:"is_embed"  gorm:"not null;default:false"`
	EmbedJSON string     `json:"-"         gorm:"type:text"`
	AuthorID  string     `json:"author_id" gorm:"type:varchar(32);not null;index"`
	Asked     bool       `json:"asked"     gorm:"not null;default:false;index:idx_questions_asked"`
	Channel   string     `json:"channel"   gorm:"type:varchar(32)"`
	Link      string     `json:"link"      gorm:"type:varchar(32)"`
	Date      *time.Time `json:"date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string { return "questions" }

// Poll is a single-choice reaction poll (or a meta poll living in the meta
// channel). The option order fixed at creation is preserved via
// PollOption.Position; vote state lives in the poll_selections join table.
//
// Fields:
//   - Channel / Link: where the poll message was posted. Link is empty until
//     the poll is sent.
//   - Open: false once closed; closing also records ResultsLink.
//   - Date: when the poll was asked; null until posted (backfilled at startup
//     for rows that predate the column).
type Poll struct {
	ID          int        `json:"id"           gorm:"primaryKey;autoIncrement"`
	Title       string     `json:"title"        gorm:"type:varchar(255);not null"`
	AuthorID    string     `json:"author_id"    gorm:"type:varchar(32)"`
	Channel     string     `json:"channel"      gorm:"type:varchar(32);index"`
	Link        string     `json:"link"         gorm:"type:varchar(32);index:idx_polls_link"`
	Open        bool       `json:"open"         gorm:"not null;default:true;index:idx_polls_open"`
	Asked       bool       `json:"asked"        gorm:"not null;default:false"`
	ResultsLink string     `json:"results_link" gorm:"type:varchar(32)"`
	Date        *time.Time `json:"date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Options are the poll's choices in creation order.
	Options []PollOption `json:"options" gorm:"foreignKey:PollID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Poll.
func (Poll) TableName() string { return "polls" }

// PollOption is one choice of a poll. Position records creation order and is
// never mutated; the emoji shown next to an option is assigned by position at
// render time only, while votes reference the stable option ID.
type PollOption struct {
	ID       int    `json:"id"       gorm:"primaryKey;autoIncrement"`
	PollID   int    `json:"poll_id"  gorm:"not null;index"`
	Position int    `json:"position" gorm:"not null"`
	Label    string `json:"label"    gorm:"type:varchar(255);not null"`

	// Selected is the vote relation: members currently selecting this option.
	Selected []Member `json:"-" gorm:"many2many:poll_selections"`
}

// TableName returns the database table name for PollOption.
func (PollOption) TableName() string { return "poll_options" }

// MegaPoll is the menu-variant poll: a long-lived checklist where a member may
// select any number of options at once through an ephemeral select menu opened
// by a button. It has no distinct closed rendering; Open only gates voting.
type MegaPoll struct {
	ID        int       `json:"id"        gorm:"primaryKey;autoIncrement"`
	Title     string    `json:"title"     gorm:"type:varchar(255);not null"`
	AuthorID  string    `json:"author_id" gorm:"type:varchar(32)"`
	Channel   string    `json:"channel"   gorm:"type:varchar(32)"`
	Link      string    `json:"link"      gorm:"type:varchar(32)"`
	ButtonID  string    `json:"button_id" gorm:"type:char(36);index"`
	Open      bool      `json:"open"      gorm:"not null;default:true;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Options []MegaPollOption `json:"options" gorm:"foreignKey:PollID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MegaPoll.
func (MegaPoll) TableName() string { return "mega_polls" }

// MegaPollOption is one checklist entry of a mega poll.
type MegaPollOption struct {
	ID       int    `json:"id"       gorm:"primaryKey;autoIncrement"`
	PollID   int    `json:"poll_id"  gorm:"not null;index"`
	Position int    `json:"position" gorm:"not null"`
	Label    string `json:"label"    gorm:"type:varchar(255);not null"`

	Selected []Member `json:"-" gorm:"many2many:mega_poll_selections"`
}

// TableName returns the database table name for MegaPollOption.
func (MegaPollOption) TableName() string { return "mega_poll_options" }

// QueueEntry is one pending item of the durable daily-send FIFO. Order is the
// autoincrement ID; entries are deleted on dequeue.
type QueueEntry struct {
	ID        int       `json:"id"     gorm:"primaryKey;autoIncrement"`
	Kind      string    `json:"kind"   gorm:"type:varchar(16);not null;check:kind IN ('question','poll')"`
	RefID     int       `json:"ref_id" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for QueueEntry.
func (QueueEntry) TableName() string { return "queue_entries" }

// BotState is a small key/value table for bot-level durable state, such as the
// id of the meta-channel status message.
type BotState struct {
	Key       string    `json:"key"   gorm:"type:varchar(64);primaryKey"`
	Value     string    `json:"value" gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for BotState.
func (BotState) TableName() string { return "bot_state" }

// Club is a student club record. Rows are read and written through the club
// cache (see internal/club), never held as a second in-memory copy.
type Club struct {
	ID              int       `json:"id"               gorm:"primaryKey;autoIncrement"`
	Name            string    `json:"name"             gorm:"type:varchar(255);not null;uniqueIndex"`
	Desc            string    `json:"desc"             gorm:"type:text"`
	Channel         string    `json:"channel"          gorm:"type:varchar(32)"`
	Role            string    `json:"role"             gorm:"type:varchar(32)"`
	ManagerID       string    `json:"manager_id"       gorm:"type:varchar(32)"`
	MeetingTime     string    `json:"meeting_time"     gorm:"type:varchar(128)"`
	MeetingLocation string    `json:"meeting_location" gorm:"type:varchar(128)"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for Club.
func (Club) TableName() string { return "clubs" }

// Game is one entry of the game rotation.
type Game struct {
	ID           int       `json:"id"            gorm:"primaryKey;autoIncrement"`
	Name         string    `json:"name"          gorm:"type:varchar(255);not null;uniqueIndex"`
	DownloadLink string    `json:"download_link" gorm:"type:text"`
	ImageLink    string    `json:"image_link"    gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for Game.
func (Game) TableName() string { return "games" }
