package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"swapmarket/internal/models"
	"swapmarket/internal/service"
)

type createSwapRequest struct {
	Receiver      string `json:"receiver"`
	Item          string `json:"item" binding:"required"`
	SwapType      string `json:"swapType" binding:"required"`
	PointsOffered int    `json:"pointsOffered"`
	Message       string `json:"message"`
}

func (h HandlerSet) CreateSwap(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req createSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	swap, err := h.swaps.Create(c.Request.Context(), service.CreateSwapInput{
		RequesterID:   user.ID,
		ReceiverID:    req.Receiver,
		ItemID:        req.Item,
		SwapType:      models.SwapType(req.SwapType),
		PointsOffered: req.PointsOffered,
		Message:       req.Message,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"swap": newSwapResponse(swap)})
}

func (h HandlerSet) UserSwaps(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	page, pageNum := pageFromQuery(c)
	swaps, err := h.swaps.ForUser(c.Request.Context(), user.ID, models.SwapStatus(c.Query("status")), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"swaps": newSwapList(swaps), "page": pageNum, "perPage": page.Limit})
}

func (h HandlerSet) PendingSwaps(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	page, pageNum := pageFromQuery(c)
	swaps, err := h.swaps.PendingForReceiver(c.Request.Context(), user.ID, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"swaps": newSwapList(swaps), "page": pageNum, "perPage": page.Limit})
}

func (h HandlerSet) GetSwap(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	swap, err := h.swaps.Get(c.Request.Context(), id, user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"swap": newSwapResponse(swap)})
}

type swapTransition func(ctx context.Context, swapID, actorID string) (models.SwapRequest, error)

func (h HandlerSet) transitionSwap(c *gin.Context, apply swapTransition) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	swap, err := apply(c.Request.Context(), id, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"swap": newSwapResponse(swap)})
}

func (h HandlerSet) AcceptSwap(c *gin.Context)   { h.transitionSwap(c, h.swaps.Accept) }
func (h HandlerSet) RejectSwap(c *gin.Context)   { h.transitionSwap(c, h.swaps.Reject) }
func (h HandlerSet) CancelSwap(c *gin.Context)   { h.transitionSwap(c, h.swaps.Cancel) }
func (h HandlerSet) CompleteSwap(c *gin.Context) { h.transitionSwap(c, h.swaps.Complete) }

func (h HandlerSet) DeleteSwap(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.swaps.Delete(c.Request.Context(), id, user.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
