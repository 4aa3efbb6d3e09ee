package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"swapmarket/internal/service"
)

type itemRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Category    string   `json:"category" binding:"required"`
	Type        string   `json:"type" binding:"required"`
	Size        string   `json:"size" binding:"required"`
	Condition   string   `json:"condition" binding:"required"`
	Brand       string   `json:"brand"`
	Color       string   `json:"color" binding:"required"`
	Material    string   `json:"material"`
	Location    string   `json:"location"`
	Tags        []string `json:"tags"`
	Seasons     []string `json:"seasons"`
	Styles      []string `json:"styles"`
	PointsValue int      `json:"pointsValue" binding:"required"`
}

func (r itemRequest) input() service.ItemInput {
	return service.ItemInput{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Type:        r.Type,
		Size:        r.Size,
		Condition:   r.Condition,
		Brand:       r.Brand,
		Color:       r.Color,
		Material:    r.Material,
		Location:    r.Location,
		Tags:        r.Tags,
		Seasons:     r.Seasons,
		Styles:      r.Styles,
		PointsValue: r.PointsValue,
	}
}

func catalogQuery(c *gin.Context) (service.CatalogQuery, error) {
	minPoints, err := queryInt(c, "minPoints")
	if err != nil {
		return service.CatalogQuery{}, err
	}
	maxPoints, err := queryInt(c, "maxPoints")
	if err != nil {
		return service.CatalogQuery{}, err
	}
	return service.CatalogQuery{
		Category:  c.Query("category"),
		Size:      c.Query("size"),
		Condition: c.Query("condition"),
		Brand:     c.Query("brand"),
		Color:     c.Query("color"),
		MinPoints: minPoints,
		MaxPoints: maxPoints,
		Sort:      c.Query("sort"),
	}, nil
}

func (h HandlerSet) ListItems(c *gin.Context) {
	query, err := catalogQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	page, pageNum := pageFromQuery(c)

	items, err := h.catalog.List(c.Request.Context(), query, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newItemList(items), "page": pageNum, "perPage": page.Limit})
}

func (h HandlerSet) SearchItems(c *gin.Context) {
	query, err := catalogQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	page, pageNum := pageFromQuery(c)

	items, err := h.catalog.Search(c.Request.Context(), c.Query("q"), query, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newItemList(items), "page": pageNum, "perPage": page.Limit})
}

func (h HandlerSet) FeaturedItems(c *gin.Context) {
	items, err := h.catalog.Featured(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newItemList(items)})
}

func (h HandlerSet) GetItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.items.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": newItemResponse(item)})
}

func (h HandlerSet) ViewItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	views, err := h.items.View(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"views": views})
}

func (h HandlerSet) CreateItem(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.items.Create(c.Request.Context(), user.ID, req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": newItemResponse(item)})
}

func (h HandlerSet) UpdateItem(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.items.Update(c.Request.Context(), id, user, req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": newItemResponse(item)})
}

func (h HandlerSet) RemoveItem(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.items.Remove(c.Request.Context(), id, user); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) LikeItem(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.items.ToggleLike(c.Request.Context(), id, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	liked := false
	for _, likedBy := range item.Likes {
		if likedBy == user.ID {
			liked = true
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked, "likesCount": len(item.Likes)})
}

func (h HandlerSet) MyItems(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	page, pageNum := pageFromQuery(c)
	items, err := h.items.Owned(c.Request.Context(), user.ID, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newItemList(items), "page": pageNum, "perPage": page.Limit})
}
