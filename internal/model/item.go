package model

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Item is a garment listing.
type Item struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Brand       string     `json:"brand,omitempty"`
	Location    string     `json:"location,omitempty"`
	Category    Category   `json:"category"`
	Size        Size       `json:"size"`
	Condition   Condition  `json:"condition"`
	PointsValue int64      `json:"points_value"`
	Available   bool       `json:"available"`
	Moderation  Moderation `json:"moderation"`
	Images      []string   `json:"images"`
	Views       int64      `json:"views"`
	Likes       int        `json:"likes"`
	IsLiked     bool       `json:"is_liked"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`

	// Joined fields (not always populated).
	OwnerName string        `json:"owner_name,omitempty"`
	Owner     *OwnerSummary `json:"owner,omitempty"`
}

// Listable reports whether the item may be targeted by a new swap.
func (i *Item) Listable() bool {
	return i.DeletedAt == nil && i.Available && i.Moderation.Status == ModerationApproved
}

// Category of a garment.
type Category string

// Categories.
const (
	CategoryTops        Category = "tops"
	CategoryBottoms     Category = "bottoms"
	CategoryDresses     Category = "dresses"
	CategoryOuterwear   Category = "outerwear"
	CategoryShoes       Category = "shoes"
	CategoryAccessories Category = "accessories"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTops, CategoryBottoms, CategoryDresses, CategoryOuterwear, CategoryShoes, CategoryAccessories:
		return true
	}
	return false
}

// Size of a garment.
type Size string

// Sizes.
const (
	SizeXS      Size = "XS"
	SizeS       Size = "S"
	SizeM       Size = "M"
	SizeL       Size = "L"
	SizeXL      Size = "XL"
	SizeXXL     Size = "XXL"
	SizeOneSize Size = "One Size"
)

// Valid reports whether s is a known size.
func (s Size) Valid() bool {
	switch s {
	case SizeXS, SizeS, SizeM, SizeL, SizeXL, SizeXXL, SizeOneSize:
		return true
	}
	return false
}

// Condition of a garment.
type Condition string

// Conditions.
const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like-new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionPoor    Condition = "poor"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// ModerationStatus is the admin visibility gate of a listing.
type ModerationStatus string

// Moderation statuses.
const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// Valid reports whether s is a known moderation status.
func (s ModerationStatus) Valid() bool {
	return s == ModerationPending || s == ModerationApproved || s == ModerationRejected
}

// CanModerate reports whether an admin may move a listing between statuses.
// Approval is only from pending; rejection is from pending or approved.
func CanModerate(from, to ModerationStatus) bool {
	switch to {
	case ModerationApproved:
		return from == ModerationPending
	case ModerationRejected:
		return from == ModerationPending || from == ModerationApproved
	}
	return false
}

// Moderation is the tagged moderation state. Reason is set only when Status
// is ModerationRejected.
type Moderation struct {
	Status ModerationStatus `json:"status"`
	Reason string           `json:"reason,omitempty"`
}

// Listing limits.
const (
	MinTitleLen       = 3
	MaxTitleLen       = 100
	MinDescriptionLen = 10
	MaxDescriptionLen = 1000
	MaxBrandLen       = 50
	MaxLocationLen    = 100
	MinPointsValue    = 1
	MaxPointsValue    = 10000
	MinImages         = 1
	MaxImages         = 5
	MaxReasonLen      = 500
)

// ItemInput holds the owner-editable fields of a listing.
type ItemInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Brand       string    `json:"brand"`
	Location    string    `json:"location"`
	Category    Category  `json:"category"`
	Size        Size      `json:"size"`
	Condition   Condition `json:"condition"`
	PointsValue int64     `json:"points_value"`
	Images      []string  `json:"images"`
}

// Normalize trims surrounding whitespace from the text fields.
func (in *ItemInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Brand = strings.TrimSpace(in.Brand)
	in.Location = strings.TrimSpace(in.Location)
	for i, img := range in.Images {
		in.Images[i] = strings.TrimSpace(img)
	}
}

// Validate returns a field -> message map; an empty map means the input is valid.
func (in *ItemInput) Validate() map[string]string {
	errs := make(map[string]string)

	if n := utf8.RuneCountInString(in.Title); n < MinTitleLen || n > MaxTitleLen {
		errs["title"] = fmt.Sprintf("title must be between %d and %d characters", MinTitleLen, MaxTitleLen)
	}
	if n := utf8.RuneCountInString(in.Description); n < MinDescriptionLen || n > MaxDescriptionLen {
		errs["description"] = fmt.Sprintf("description must be between %d and %d characters", MinDescriptionLen, MaxDescriptionLen)
	}
	if utf8.RuneCountInString(in.Brand) > MaxBrandLen {
		errs["brand"] = fmt.Sprintf("brand must be at most %d characters", MaxBrandLen)
	}
	if utf8.RuneCountInString(in.Location) > MaxLocationLen {
		errs["location"] = fmt.Sprintf("location must be at most %d characters", MaxLocationLen)
	}
	if !in.Category.Valid() {
		errs["category"] = "invalid category"
	}
	if !in.Size.Valid() {
		errs["size"] = "invalid size"
	}
	if !in.Condition.Valid() {
		errs["condition"] = "invalid condition"
	}
	if in.PointsValue < MinPointsValue || in.PointsValue > MaxPointsValue {
		errs["points_value"] = fmt.Sprintf("points value must be between %d and %d", MinPointsValue, MaxPointsValue)
	}
	if len(in.Images) < MinImages || len(in.Images) > MaxImages {
		errs["images"] = fmt.Sprintf("between %d and %d images required", MinImages, MaxImages)
	} else {
		for _, img := range in.Images {
			if img == "" {
				errs["images"] = "image reference must not be empty"
				break
			}
		}
	}

	return errs
}

// ValidationError converts a non-empty field map into an Invalid domain error.
func ValidationError(errs map[string]string) error {
	if len(errs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = k + ": " + errs[k]
	}
	return &Error{Kind: KindInvalid, Msg: strings.Join(msgs, "; ")}
}

// ValidateReason checks a rejection reason: required, bounded.
func ValidateReason(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Errorf(KindInvalid, "reason required")
	}
	if utf8.RuneCountInString(reason) > MaxReasonLen {
		return Errorf(KindInvalid, "reason must be at most %d characters", MaxReasonLen)
	}
	return nil
}

// ItemFilter selects catalog listings.
type ItemFilter struct {
	Search    string
	Category  Category
	Size      Size
	Condition Condition
	MinPoints int64
	MaxPoints int64
	OwnerID   int64
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Paging defaults.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps paging and replaces unknown sort keys with defaults. Page
// is capped so the row offset fits in an int32.
func (f *ItemFilter) Normalize() {
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if maxPage := math.MaxInt32/f.Limit + 1; f.Page > maxPage {
		f.Page = maxPage
	}
	switch f.SortBy {
	case "created_at", "points_value", "title":
	default:
		f.SortBy = "created_at"
	}
	if f.SortOrder != "asc" {
		f.SortOrder = "desc"
	}
}

// ItemPage is one page of listings.
type ItemPage struct {
	Items []Item `json:"items"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}
