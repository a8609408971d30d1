package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"convstore/internal/common"
	"convstore/internal/conversation"
	"convstore/internal/store"
)

func convID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 40001, "invalid conversation id")
		return 0, false
	}
	return id, true
}

func blockPosition(c *gin.Context) (int, bool) {
	pos, err := strconv.Atoi(c.Param("position"))
	if err != nil || pos < 0 {
		common.Fail(c, http.StatusBadRequest, 40002, "invalid block position")
		return 0, false
	}
	return pos, true
}

// GET /conversations?search=&limit=&offset=
func (h *Handler) ListConversations(c *gin.Context) {
	opts := store.ListOptions{Search: c.Query("search")}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	items, err := h.Repo.ListConversations(c.Request.Context(), opts)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to list conversations")
		return
	}
	total, err := h.Repo.ConversationCount(c.Request.Context(), opts.Search)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to count conversations")
		return
	}
	common.OK(c, gin.H{"items": items, "total": total})
}

// GET /conversations/:id
func (h *Handler) GetConversation(c *gin.Context) {
	id, ok := convID(c)
	if !ok {
		return
	}
	conv, err := h.Repo.LoadConversation(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		common.Fail(c, http.StatusNotFound, 40401, "conversation not found")
		return
	}
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load conversation")
		return
	}
	common.OK(c, conv)
}

// POST /conversations
func (h *Handler) CreateConversation(c *gin.Context) {
	var conv conversation.Conversation
	if err := c.ShouldBindJSON(&conv); err != nil {
		common.Fail(c, http.StatusBadRequest, 40003, "invalid conversation payload")
		return
	}
	id, err := h.Repo.SaveConversation(c.Request.Context(), &conv)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to save conversation")
		return
	}
	common.OK(c, gin.H{"id": id})
}

type titleReq struct {
	Title *string `json:"title"`
}

// PATCH /conversations/:id/title
func (h *Handler) UpdateTitle(c *gin.Context) {
	id, ok := convID(c)
	if !ok {
		return
	}
	var req titleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40004, "invalid title payload")
		return
	}
	if err := h.Repo.UpdateConversationTitle(c.Request.Context(), id, req.Title); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to update title")
		return
	}
	common.OK(c, nil)
}

// DELETE /conversations/:id
func (h *Handler) DeleteConversation(c *gin.Context) {
	id, ok := convID(c)
	if !ok {
		return
	}
	if err := h.Repo.DeleteConversation(c.Request.Context(), id); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to delete conversation")
		return
	}
	common.OK(c, nil)
}

type blockReq struct {
	Block         conversation.MessageBlock   `json:"block"`
	SystemMessage *conversation.SystemMessage `json:"system_message,omitempty"`
}

// PUT /conversations/:id/blocks/:position
func (h *Handler) PutBlock(c *gin.Context) {
	id, ok := convID(c)
	if !ok {
		return
	}
	pos, ok := blockPosition(c)
	if !ok {
		return
	}
	var req blockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40005, "invalid block payload")
		return
	}
	if err := h.Repo.SaveMessageBlock(c.Request.Context(), id, pos, &req.Block, req.SystemMessage); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50006, "failed to save block")
		return
	}
	common.OK(c, nil)
}

// PUT /conversations/:id/blocks/:position/draft
func (h *Handler) PutDraftBlock(c *gin.Context) {
	id, ok := convID(c)
	if !ok {
		return
	}
	pos, ok := blockPosition(c)
	if !ok {
		return
	}
	var req blockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40005, "invalid block payload")
		return
	}
	if err := h.Repo.SaveDraftBlock(c.Request.Context(), id, pos, &req.Block, req.SystemMessage); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50007, "failed to save draft")
		return
	}
	common.OK(c, nil)
}

// DELETE /conversations/:id/blocks/:position/draft
func (h *Handler) DeleteDraftBlock(c *gin.Context) {
	id, ok := convID(c)
	if !ok {
		return
	}
	pos, ok := blockPosition(c)
	if !ok {
		return
	}
	if err := h.Repo.DeleteDraftBlock(c.Request.Context(), id, pos); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50008, "failed to delete draft")
		return
	}
	common.OK(c, nil)
}

// POST /maintenance/orphans
func (h *Handler) CleanupOrphans(c *gin.Context) {
	attachments, err := h.Repo.CleanupOrphanAttachments(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50009, "orphan cleanup failed")
		return
	}
	prompts, err := h.Repo.CleanupOrphanSystemPrompts(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50009, "orphan cleanup failed")
		return
	}
	common.OK(c, gin.H{
		"removed_attachments":    attachments,
		"removed_system_prompts": prompts,
	})
}
