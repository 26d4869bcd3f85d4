package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// User is an exchange account. Accounts both own listings and hold points.
type User struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	PasswordHash  string     `json:"-"`
	Role          string     `json:"role"`
	FirstName     string     `json:"first_name,omitempty"`
	LastName      string     `json:"last_name,omitempty"`
	Location      string     `json:"location,omitempty"`
	Bio           string     `json:"bio,omitempty"`
	AvatarURL     string     `json:"avatar_url,omitempty"`
	PointsBalance int64      `json:"points_balance"`
	RatingSum     int64      `json:"-"`
	RatingCount   int64      `json:"rating_count"`
	Rating        float64    `json:"rating"`
	CreatedAt     time.Time  `json:"created_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// SetRating fills Rating from the stored aggregate.
func (u *User) SetRating() {
	u.Rating = 0
	if u.RatingCount > 0 {
		u.Rating = float64(u.RatingSum) / float64(u.RatingCount)
	}
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Unknown roles never pass.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 2,
		RoleUser:  1,
	}
	l, ok := levels[role]
	if !ok {
		return false
	}
	m, ok := levels[minimum]
	if !ok {
		return false
	}
	return l >= m
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return Errorf(KindInvalid, "password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateUsername checks that a username is 3 to 32 characters.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < 3 || n > 32 {
		return Errorf(KindInvalid, "username must be between 3 and 32 characters")
	}
	return nil
}

// UserStats summarizes an account's activity. Every field is always populated.
type UserStats struct {
	ItemsListed    int   `json:"items_listed"`
	ItemsApproved  int   `json:"items_approved"`
	ItemsPending   int   `json:"items_pending"`
	SwapsCompleted int   `json:"swaps_completed"`
	SwapsPending   int   `json:"swaps_pending"`
	PointsEarned   int64 `json:"points_earned"`
	PointsSpent    int64 `json:"points_spent"`
}

// Profile limits.
const (
	MinNameLen         = 2
	MaxNameLen         = 50
	MaxUserLocationLen = 100
	MaxBioLen          = 500
)

// ProfileInput holds the self-editable profile fields of an account.
type ProfileInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Location  string `json:"location"`
	Bio       string `json:"bio"`
}

// Normalize trims surrounding whitespace from every field.
func (in *ProfileInput) Normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)
	in.Location = strings.TrimSpace(in.Location)
	in.Bio = strings.TrimSpace(in.Bio)
}

// Validate returns a field -> message map. Names are optional but bounded
// when given.
func (in *ProfileInput) Validate() map[string]string {
	errs := make(map[string]string)
	names := []struct{ field, value string }{
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
	}
	for _, n := range names {
		if l := utf8.RuneCountInString(n.value); n.value != "" && (l < MinNameLen || l > MaxNameLen) {
			errs[n.field] = fmt.Sprintf("must be between %d and %d characters", MinNameLen, MaxNameLen)
		}
	}
	if err := ValidateUsername(in.Username); err != nil {
		errs["username"] = err.Error()
	}
	if utf8.RuneCountInString(in.Location) > MaxUserLocationLen {
		errs["location"] = fmt.Sprintf("location must be at most %d characters", MaxUserLocationLen)
	}
	if utf8.RuneCountInString(in.Bio) > MaxBioLen {
		errs["bio"] = fmt.Sprintf("bio must be at most %d characters", MaxBioLen)
	}
	return errs
}

// Profile is the public view of an account with its live listings.
type Profile struct {
	User           *User  `json:"user"`
	ItemsListed    int    `json:"items_listed"`
	SwapsCompleted int    `json:"swaps_completed"`
	Items          []Item `json:"items"`
}

// OwnerSummary is the owner card shown on a listing.
type OwnerSummary struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Rating      float64   `json:"rating"`
	RatingCount int64     `json:"rating_count"`
	ItemsCount  int       `json:"items_count"`
	CreatedAt   time.Time `json:"created_at"`
}
