package models

import (
	"slices"
	"time"
)

type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusActive  ItemStatus = "active"
	ItemStatusSwapped ItemStatus = "swapped"
	ItemStatusExpired ItemStatus = "expired"
	ItemStatusRemoved ItemStatus = "removed"
)

const (
	MinPointsValue = 1
	MaxPointsValue = 1000
	MaxItemImages  = 5
)

// DefaultItemTTL is how long a listing stays up before it expires.
const DefaultItemTTL = 90 * 24 * time.Hour

var (
	ItemCategories = []string{"men", "women", "kids", "accessories", "shoes", "bags"}
	ItemTypes      = []string{
		"shirts", "pants", "dresses", "skirts", "jackets", "coats", "sweaters", "hoodies",
		"t-shirts", "jeans", "shorts", "suits", "formal", "casual", "sports", "underwear",
		"sleepwear", "swimwear", "other",
	}
	ItemSizes      = []string{"XS", "S", "M", "L", "XL", "XXL", "XXXL", "One Size", "Custom"}
	ItemConditions = []string{"new", "like-new", "excellent", "good", "fair", "poor"}
	ItemSeasons    = []string{"spring", "summer", "fall", "winter", "all-season"}
	ItemStyles     = []string{
		"casual", "formal", "business", "sporty", "vintage", "bohemian", "minimalist",
		"streetwear", "elegant", "punk", "gothic", "preppy", "hipster", "classic", "modern",
	}
)

type ItemImage struct {
	ID        string
	ObjectKey string
	URL       string
	IsPrimary bool
}

type Item struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Category    string
	Type        string
	Size        string
	Condition   string
	Brand       string
	Color       string
	Material    string
	Location    string
	Tags        []string
	Seasons     []string
	Styles      []string
	Images      []ItemImage
	PointsValue int
	IsAvailable bool
	IsApproved  bool
	IsFeatured  bool
	Status      ItemStatus
	Views       int64
	// Likes and SwapRequests are id indexes maintained next to the item;
	// they are not the source of truth for swap state.
	Likes        []string
	SwapRequests []string
	ExpiryDate   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsEligible reports whether the item may be swapped and shown in public listings.
func (i Item) IsEligible() bool {
	return i.IsAvailable && i.IsApproved && i.Status == ItemStatusActive
}

// IsExpired reports whether now is past the expiry date. Listings use the
// same boundary: an item stays visible while expiry_date >= now.
func (i Item) IsExpired(now time.Time) bool {
	return now.After(i.ExpiryDate)
}

// ApplyExpiry moves an active item past its expiry date to expired.
// It reports whether the item changed.
func (i *Item) ApplyExpiry(now time.Time) bool {
	if i.Status != ItemStatusActive || !i.IsExpired(now) {
		return false
	}
	i.Status = ItemStatusExpired
	i.IsAvailable = false
	return true
}

// EnsurePrimaryImage keeps exactly one primary image when the list is not empty.
// It reports whether the item changed.
func (i *Item) EnsurePrimaryImage() bool {
	if len(i.Images) == 0 {
		return false
	}
	primary := -1
	changed := false
	for idx := range i.Images {
		if !i.Images[idx].IsPrimary {
			continue
		}
		if primary >= 0 {
			i.Images[idx].IsPrimary = false
			changed = true
			continue
		}
		primary = idx
	}
	if primary < 0 {
		i.Images[0].IsPrimary = true
		changed = true
	}
	return changed
}

// Normalize runs every item invariant. Call it after loading and before saving.
func (i *Item) Normalize(now time.Time) bool {
	expired := i.ApplyExpiry(now)
	primary := i.EnsurePrimaryImage()
	return expired || primary
}

// ToggleLike adds userID to the likes set or removes it when present.
// It returns true when the user now likes the item.
func (i *Item) ToggleLike(userID string) bool {
	if idx := slices.Index(i.Likes, userID); idx >= 0 {
		i.Likes = slices.Delete(i.Likes, idx, idx+1)
		return false
	}
	i.Likes = append(i.Likes, userID)
	return true
}

func (i *Item) AddSwapRequest(swapID string) {
	if !slices.Contains(i.SwapRequests, swapID) {
		i.SwapRequests = append(i.SwapRequests, swapID)
	}
}

func (i *Item) RemoveSwapRequest(swapID string) {
	if idx := slices.Index(i.SwapRequests, swapID); idx >= 0 {
		i.SwapRequests = slices.Delete(i.SwapRequests, idx, idx+1)
	}
}

func (i *Item) MarkSwapped() {
	i.Status = ItemStatusSwapped
	i.IsAvailable = false
}

func (i *Item) MarkRemoved() {
	i.Status = ItemStatusRemoved
	i.IsAvailable = false
}

// PrimaryImage returns the primary image, if any.
func (i Item) PrimaryImage() (ItemImage, bool) {
	for _, img := range i.Images {
		if img.IsPrimary {
			return img, true
		}
	}
	return ItemImage{}, false
}

// Clone returns a deep copy so that callers may mutate slices freely.
func (i Item) Clone() Item {
	i.Tags = slices.Clone(i.Tags)
	i.Seasons = slices.Clone(i.Seasons)
	i.Styles = slices.Clone(i.Styles)
	i.Images = slices.Clone(i.Images)
	i.Likes = slices.Clone(i.Likes)
	i.SwapRequests = slices.Clone(i.SwapRequests)
	return i
}
