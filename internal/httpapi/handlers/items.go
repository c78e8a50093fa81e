package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/foundly/foundly/internal/common"
	"github.com/foundly/foundly/internal/item"
)

type reportItemReq struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Category    string   `json:"category"`
	Kind        string   `json:"kind" binding:"required"`
	Location    string   `json:"location"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Reward      float64  `json:"reward"`
	ImageURL    string   `json:"image_url"`
}

func (h *Handler) ReportItem(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req reportItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	it, err := h.ItemSvc.Report(c.Request.Context(), uid, item.ReportInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Kind:        item.Kind(req.Kind),
		Location:    req.Location,
		Lat:         req.Lat,
		Lng:         req.Lng,
		Reward:      req.Reward,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, item.ErrMissingFields), errors.Is(err, item.ErrInvalidKind):
			common.Fail(c, http.StatusBadRequest, 10030, err.Error())
		default:
			common.Fail(c, http.StatusInternalServerError, 50010, "failed to report item")
		}
		return
	}

	// a photo goes through the safe-search check before the item shows
	// up in browse; when the queue is missing or the publish fails we
	// approve unchecked rather than leaving the item stuck in pending
	if it.ImageURL != "" {
		if h.Publisher == nil {
			h.approveUnchecked(c, it)
		} else if _, err := h.ModSvc.EnqueueCheck(c.Request.Context(), h.Publisher, it.ID, it.ImageURL); err != nil {
			h.Logger.WithError(err).WithField("item_id", it.ID).
				Warn("failed to enqueue moderation check, approving unchecked")
			h.approveUnchecked(c, it)
		}
	}

	common.OK(c, it)
}

func (h *Handler) approveUnchecked(c *gin.Context, it *item.Item) {
	if err := h.ItemSvc.SetModerationVerdict(c.Request.Context(), it.ID, true); err != nil {
		h.Logger.WithError(err).WithField("item_id", it.ID).
			Warn("failed to approve item without moderation check")
		return
	}
	it.Status = item.StatusApproved
}

func (h *Handler) BrowseItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	// viewer is optional on browse; authed callers also see their own
	// pending items
	uid, _ := userIDFromContext(c)

	items, err := h.ItemSvc.Browse(c.Request.Context(), item.Filter{
		Kind:     item.Kind(c.Query("kind")),
		Category: c.Query("category"),
		Query:    c.Query("q"),
		ViewerID: uid,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50011, "failed to list items")
		return
	}

	common.OK(c, gin.H{"items": items})
}

func (h *Handler) GetItem(c *gin.Context) {
	it, err := h.ItemSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, item.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40410, "item not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50012, "failed to load item")
		return
	}
	common.OK(c, it)
}

func (h *Handler) UpdateItem(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	it, err := h.ItemSvc.Update(c.Request.Context(), uid, c.Param("id"), updates)
	if err != nil {
		switch {
		case errors.Is(err, item.ErrNotFound):
			common.Fail(c, http.StatusNotFound, 40410, "item not found")
		case errors.Is(err, item.ErrNotOwner):
			common.Fail(c, http.StatusForbidden, 40310, "not your item")
		default:
			common.Fail(c, http.StatusInternalServerError, 50013, "failed to update item")
		}
		return
	}
	common.OK(c, it)
}

func (h *Handler) DeleteItem(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := h.ItemSvc.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, item.ErrNotFound):
			common.Fail(c, http.StatusNotFound, 40410, "item not found")
		case errors.Is(err, item.ErrNotOwner):
			common.Fail(c, http.StatusForbidden, 40310, "not your item")
		default:
			common.Fail(c, http.StatusInternalServerError, 50014, "failed to delete item")
		}
		return
	}
	common.OK(c, gin.H{"deleted": true})
}
