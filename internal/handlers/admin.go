package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"swapmarket/internal/models"
)

func (h HandlerSet) AdminStats(c *gin.Context) {
	counts, err := h.users.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users":          counts.Users,
		"items":          counts.Items,
		"activeItems":    counts.ActiveItems,
		"pendingItems":   counts.PendingItems,
		"swaps":          counts.Swaps,
		"pendingSwaps":   counts.PendingSwaps,
		"completedSwaps": counts.CompletedSwap,
	})
}

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	page, pageNum := pageFromQuery(c)
	users, err := h.users.List(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, newUserResponse(user, true))
	}
	c.JSON(http.StatusOK, gin.H{"users": resp, "page": pageNum, "perPage": page.Limit})
}

func (h HandlerSet) AdminListItems(c *gin.Context) {
	page, pageNum := pageFromQuery(c)
	items, err := h.items.All(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newItemList(items), "page": pageNum, "perPage": page.Limit})
}

func (h HandlerSet) AdminListSwaps(c *gin.Context) {
	page, pageNum := pageFromQuery(c)
	swaps, err := h.swaps.All(c.Request.Context(), models.SwapStatus(c.Query("status")), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"swaps": newSwapList(swaps), "page": pageNum, "perPage": page.Limit})
}

func (h HandlerSet) AdminApproveItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.items.Approve(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": newItemResponse(item)})
}

func (h HandlerSet) AdminRejectItem(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.items.Reject(c.Request.Context(), id, admin)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": newItemResponse(item)})
}

func (h HandlerSet) AdminFeatureItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.items.ToggleFeatured(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": newItemResponse(item)})
}
