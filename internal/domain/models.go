// Package domain defines the persistence models for per-user conversation
// context. These types are mapped with GORM and form the durable tier of the
// relay's two-tier context store.
package domain

// ContextEntry is one immutable utterance submitted by a user. Entries are
// append-only: they are created on a successful relay and removed only by an
// explicit user-scoped purge. Within a user, entries are totally ordered by
// ID; the "most recent" entry is the one with the highest ID.
//
// Fields:
//   - ID: auto-incrementing sequence number (primary key).
//   - UserID: opaque user identity; indexed together with ID so the
//     "latest entry per user" lookup is a single descending index scan.
//   - Text: the raw message text exactly as submitted (never a joined prompt).
type ContextEntry struct {
	ID     int64  `json:"id"      gorm:"primaryKey;autoIncrement"`
	UserID int64  `json:"user_id" gorm:"not null;index:idx_context_user_id,priority:1"`
	Text   string `json:"text"    gorm:"type:text;not null"`
}

// TableName returns the database table name for ContextEntry.
func (ContextEntry) TableName() string { return "context" }
