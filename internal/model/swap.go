package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// SwapMode is how the requester pays for the requested item.
type SwapMode string

// Swap modes.
const (
	SwapModeDirect SwapMode = "direct"
	SwapModePoints SwapMode = "points"
)

// Valid reports whether m is a known mode.
func (m SwapMode) Valid() bool {
	return m == SwapModeDirect || m == SwapModePoints
}

// SwapStatus is the negotiation state of a swap request.
type SwapStatus string

// Swap statuses.
const (
	SwapPending   SwapStatus = "pending"
	SwapAccepted  SwapStatus = "accepted"
	SwapRejected  SwapStatus = "rejected"
	SwapCancelled SwapStatus = "cancelled"
	SwapCompleted SwapStatus = "completed"
)

// swapTransitions lists the allowed target states for each state.
var swapTransitions = map[SwapStatus][]SwapStatus{
	SwapPending:  {SwapAccepted, SwapRejected, SwapCancelled},
	SwapAccepted: {SwapCompleted, SwapCancelled},
}

// Valid reports whether s is a known status.
func (s SwapStatus) Valid() bool {
	switch s {
	case SwapPending, SwapAccepted, SwapRejected, SwapCancelled, SwapCompleted:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s SwapStatus) Terminal() bool {
	return len(swapTransitions[s]) == 0
}

// CanTransition reports whether a swap may move from one status to another.
func CanTransition(from, to SwapStatus) bool {
	for _, s := range swapTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ReasonStaleOffer marks a swap rejected automatically at accept time because
// the offer no longer held.
const ReasonStaleOffer = "stale_offer"

// MaxMessageLen bounds the requester's message.
const MaxMessageLen = 500

// MaxOfferedItems bounds the items offered in one direct swap.
const MaxOfferedItems = 5

// ValidateMessage checks the length of a swap message.
func ValidateMessage(msg string) error {
	if utf8.RuneCountInString(strings.TrimSpace(msg)) > MaxMessageLen {
		return Errorf(KindInvalid, "message must be at most %d characters", MaxMessageLen)
	}
	return nil
}

// Swap is a swap or redemption request between two accounts.
// OfferedItemIDs is set only in direct mode, PointsOffered only in points mode.
type Swap struct {
	ID              int64      `json:"id"`
	RequesterID     int64      `json:"requester_id"`
	OwnerID         int64      `json:"owner_id"`
	RequestedItemID int64      `json:"requested_item_id"`
	Mode            SwapMode   `json:"mode"`
	OfferedItemIDs  []int64    `json:"offered_item_ids,omitempty"`
	PointsOffered   int64      `json:"points_offered,omitempty"`
	Message         string     `json:"message,omitempty"`
	Status          SwapStatus `json:"status"`
	Reason          string     `json:"reason,omitempty"`
	CancelledBy     *int64     `json:"cancelled_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	// Joined fields (not always populated).
	RequestedItemTitle string `json:"requested_item_title,omitempty"`
	RequesterName      string `json:"requester_name,omitempty"`
	OwnerName          string `json:"owner_name,omitempty"`
}

// Party reports whether userID is the requester or the owner.
func (s *Swap) Party(userID int64) bool {
	return userID == s.RequesterID || userID == s.OwnerID
}

// ItemIDs returns the requested item followed by any offered items.
func (s *Swap) ItemIDs() []int64 {
	return append([]int64{s.RequestedItemID}, s.OfferedItemIDs...)
}

// Counterpart returns the other party of the swap.
func (s *Swap) Counterpart(userID int64) int64 {
	if userID == s.RequesterID {
		return s.OwnerID
	}
	return s.RequesterID
}

// SwapFilter selects swaps for one account.
type SwapFilter struct {
	UserID    int64
	Direction string // "sent", "received" or "" for both
	Status    SwapStatus
}

// Transfer records one settlement movement: an item changing owner, or points
// moving between accounts (ItemID nil).
type Transfer struct {
	ID            int64     `json:"id"`
	SwapID        int64     `json:"swap_id"`
	ItemID        *int64    `json:"item_id,omitempty"`
	FromUserID    int64     `json:"from_user_id"`
	ToUserID      int64     `json:"to_user_id"`
	Points        int64     `json:"points,omitempty"`
	TransferredAt time.Time `json:"transferred_at"`

	// Joined fields (not always populated).
	ItemTitle    string `json:"item_title,omitempty"`
	FromUsername string `json:"from_username,omitempty"`
	ToUsername   string `json:"to_username,omitempty"`
}

// Rating limits.
const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// Rating is one party's score of the other after a completed swap.
type Rating struct {
	SwapID    int64     `json:"swap_id"`
	RaterID   int64     `json:"rater_id"`
	RateeID   int64     `json:"ratee_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// DashboardRecent is how many recent accounts and listings the dashboard shows.
const DashboardRecent = 5

// Dashboard holds admin overview counts and the newest accounts and listings.
// Missing buckets are zero.
type Dashboard struct {
	Users         int                      `json:"users"`
	Items         int                      `json:"items"`
	ItemsByStatus map[ModerationStatus]int `json:"items_by_status"`
	Swaps         int                      `json:"swaps"`
	SwapsByStatus map[SwapStatus]int       `json:"swaps_by_status"`
	RecentUsers   []User                   `json:"recent_users"`
	RecentItems   []Item                   `json:"recent_items"`
}
