package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Level is one entry of a ranked list. Placement is the 1-based rank within
// List; for any list the placements of live rows are exactly {1..N}.
type Level struct {
	ID          string
	List        string
	Placement   int
	Name        string
	Creator     string
	Verifier    string
	ExternalID  int64
	VideoURL    string
	Description string
	// Historic marks a row resurrected from a changelog entry that predates
	// full snapshotting; only Name and Placement are trustworthy on it.
	Historic  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	ChangeAdd    = "ADD"
	ChangeMove   = "MOVE"
	ChangeRemove = "REMOVE"
)

// ListChange is an append-only changelog row. Operation parameters live in
// structured columns; Description is display text only and is never parsed.
type ListChange struct {
	ID           int64
	Type         string
	List         string
	LevelID      string
	LevelName    string
	Description  string
	OldPlacement *int
	NewPlacement *int
	// LevelSnapshot holds the full level row as JSON for REMOVE entries,
	// making reconstruction of removed levels lossless.
	LevelSnapshot json.RawMessage
	CreatedAt     time.Time
}

const (
	RecordPending  = "PENDING"
	RecordApproved = "APPROVED"
	RecordRejected = "REJECTED"
)

type Record struct {
	ID         string
	LevelID    string
	UserID     string
	PlayerName string
	Percent    int
	VideoURL   string
	Status     string
	ReviewedBy string
	ReviewNote string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Layout struct {
	ID          string
	OwnerID     string
	OwnerName   string
	Title       string
	Description string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	PartOpen    = "OPEN"
	PartClaimed = "CLAIMED"
	PartDone    = "DONE"
)

type Part struct {
	ID           string
	LayoutID     string
	StartPercent int
	EndPercent   int
	Status       string
	ClaimedBy    string
	ClaimedName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	ID         string
	LayoutID   string
	AuthorID   string
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

const (
	FriendPending  = "PENDING"
	FriendAccepted = "ACCEPTED"
	FriendDeclined = "DECLINED"
)

type FriendRequest struct {
	ID        string
	FromID    string
	FromName  string
	ToID      string
	ToName    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
