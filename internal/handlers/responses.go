package handlers

import (
	"time"

	"swapmarket/internal/models"
)

type imageResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	IsPrimary bool   `json:"isPrimary"`
}

type itemResponse struct {
	ID           string          `json:"id"`
	User         string          `json:"user"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Type         string          `json:"type"`
	Size         string          `json:"size"`
	Condition    string          `json:"condition"`
	Brand        string          `json:"brand,omitempty"`
	Color        string          `json:"color"`
	Material     string          `json:"material,omitempty"`
	Location     string          `json:"location,omitempty"`
	Tags         []string        `json:"tags"`
	Seasons      []string        `json:"seasons"`
	Styles       []string        `json:"styles"`
	Images       []imageResponse `json:"images"`
	PointsValue  int             `json:"pointsValue"`
	IsAvailable  bool            `json:"isAvailable"`
	IsApproved   bool            `json:"isApproved"`
	IsFeatured   bool            `json:"isFeatured"`
	Status       string          `json:"status"`
	Views        int64           `json:"views"`
	Likes        []string        `json:"likes"`
	LikesCount   int             `json:"likesCount"`
	SwapRequests []string        `json:"swapRequests"`
	ExpiryDate   time.Time       `json:"expiryDate"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func newItemResponse(item models.Item) itemResponse {
	images := make([]imageResponse, 0, len(item.Images))
	for _, img := range item.Images {
		images = append(images, imageResponse{ID: img.ID, URL: img.URL, IsPrimary: img.IsPrimary})
	}
	return itemResponse{
		ID:           item.ID,
		User:         item.UserID,
		Title:        item.Title,
		Description:  item.Description,
		Category:     item.Category,
		Type:         item.Type,
		Size:         item.Size,
		Condition:    item.Condition,
		Brand:        item.Brand,
		Color:        item.Color,
		Material:     item.Material,
		Location:     item.Location,
		Tags:         nonNil(item.Tags),
		Seasons:      nonNil(item.Seasons),
		Styles:       nonNil(item.Styles),
		Images:       images,
		PointsValue:  item.PointsValue,
		IsAvailable:  item.IsAvailable,
		IsApproved:   item.IsApproved,
		IsFeatured:   item.IsFeatured,
		Status:       string(item.Status),
		Views:        item.Views,
		Likes:        nonNil(item.Likes),
		LikesCount:   len(item.Likes),
		SwapRequests: nonNil(item.SwapRequests),
		ExpiryDate:   item.ExpiryDate,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

func newItemList(items []models.Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, newItemResponse(item))
	}
	return out
}

type swapResponse struct {
	ID            string    `json:"id"`
	Requester     string    `json:"requester"`
	Receiver      string    `json:"receiver"`
	Item          string    `json:"item"`
	Status        string    `json:"status"`
	SwapType      string    `json:"swapType"`
	PointsOffered int       `json:"pointsOffered"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func newSwapResponse(swap models.SwapRequest) swapResponse {
	return swapResponse{
		ID:            swap.ID,
		Requester:     swap.RequesterID,
		Receiver:      swap.ReceiverID,
		Item:          swap.ItemID,
		Status:        string(swap.Status),
		SwapType:      string(swap.SwapType),
		PointsOffered: swap.PointsOffered,
		Message:       swap.Message,
		CreatedAt:     swap.CreatedAt,
		UpdatedAt:     swap.UpdatedAt,
	}
}

func newSwapList(swaps []models.SwapRequest) []swapResponse {
	out := make([]swapResponse, 0, len(swaps))
	for _, swap := range swaps {
		out = append(out, newSwapResponse(swap))
	}
	return out
}

type statsResponse struct {
	ItemsListed  int     `json:"itemsListed"`
	ItemsSwapped int     `json:"itemsSwapped"`
	PointsEarned int     `json:"pointsEarned"`
	PointsSpent  int     `json:"pointsSpent"`
	Rating       float64 `json:"rating"`
	RatingCount  int     `json:"ratingCount"`
}

// userResponse is the public profile. Email is only filled for the user
// themselves and for admins.
type userResponse struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email,omitempty"`
	Avatar    *string       `json:"avatar"`
	Bio       string        `json:"bio,omitempty"`
	Location  string        `json:"location,omitempty"`
	Points    int           `json:"points"`
	Role      string        `json:"role"`
	Status    string        `json:"status"`
	Stats     statsResponse `json:"stats"`
	CreatedAt time.Time     `json:"createdAt"`
}

func newUserResponse(user models.User, withEmail bool) userResponse {
	resp := userResponse{
		ID:       user.ID,
		Name:     user.Name,
		Avatar:   user.AvatarURL,
		Bio:      user.Bio,
		Location: user.Location,
		Points:   user.Points,
		Role:     string(user.Role),
		Status:   string(user.Status),
		Stats: statsResponse{
			ItemsListed:  user.Stats.ItemsListed,
			ItemsSwapped: user.Stats.ItemsSwapped,
			PointsEarned: user.Stats.PointsEarned,
			PointsSpent:  user.Stats.PointsSpent,
			Rating:       user.AverageRating(),
			RatingCount:  user.Stats.RatingCount,
		},
		CreatedAt: user.CreatedAt,
	}
	if withEmail {
		resp.Email = user.Email
	}
	return resp
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
