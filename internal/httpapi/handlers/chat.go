package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/manonkim2/ai-character-chat/internal/chat"
	"github.com/manonkim2/ai-character-chat/internal/common"
)

type conversationMsg struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
	Ts      int64  `json:"ts"` // millisecond epoch, optional
}

type saveConversationReq struct {
	Messages []conversationMsg `json:"messages"`
}

func (m conversationMsg) toModel() chat.Message {
	out := chat.Message{Role: m.Role, Content: m.Content}
	if m.Ts > 0 {
		out.CreatedAt = time.UnixMilli(m.Ts)
	}
	return out
}

// SaveConversation replaces the stored history for a character with the
// submitted transcript.
func (h *Handler) SaveConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		unauthorized(c)
		return
	}
	characterID := c.Param("id")

	var req saveConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	msgs := make([]chat.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, m.toModel())
	}

	if err := h.ChatSvc.SaveConversation(c.Request.Context(), uid, characterID, msgs); err != nil {
		if chat.IsNotFound(err) {
			common.Fail(c, http.StatusNotFound, 40004, "character not found")
			return
		}
		log.Printf("[SaveConversation] failed uid=%s character_id=%s err=%v", uid, characterID, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to save conversation")
		return
	}

	common.Ok(c, gin.H{"character_id": characterID, "saved": len(msgs)})
}

// ListConversation returns the stored history, creation time ascending.
func (h *Handler) ListConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		unauthorized(c)
		return
	}
	characterID := c.Param("id")

	msgs, err := h.ChatSvc.ListConversation(c.Request.Context(), uid, characterID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to list conversation")
		return
	}

	common.Ok(c, gin.H{"messages": msgs})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		unauthorized(c)
		return
	}
	characterID := c.Param("id")

	if err := h.ChatSvc.DeleteConversation(c.Request.Context(), uid, characterID); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to delete conversation")
		return
	}
	common.Ok(c, gin.H{"character_id": characterID})
}

// SaveConversationAsync snapshots the transcript into a job row and enqueues
// it; the worker performs the actual write.
func (h *Handler) SaveConversationAsync(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		unauthorized(c)
		return
	}
	characterID := c.Param("id")

	if h.Rabbit == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "job queue unavailable")
		return
	}

	var req saveConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	msgs := make([]chat.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, m.toModel())
	}

	job, err := h.ChatSvc.CreateSaveJob(c.Request.Context(), uid, characterID, msgs)
	if err != nil {
		if chat.IsNotFound(err) {
			common.Fail(c, http.StatusNotFound, 40004, "character not found")
			return
		}
		log.Printf("[SaveConversationAsync] CreateSaveJob failed uid=%s character_id=%s err=%v", uid, characterID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	if err := h.Rabbit.PublishSaveJob(c.Request.Context(), job.ID); err != nil {
		log.Printf("[SaveConversationAsync] PublishSaveJob failed uid=%s job_id=%s err=%v", uid, job.ID, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
		return
	}

	common.Ok(c, gin.H{"job_id": job.ID})
}

func (h *Handler) GetSaveJob(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		unauthorized(c)
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if chat.IsNotFound(err) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	common.Ok(c, gin.H{
		"job": gin.H{
			"id":           j.ID,
			"character_id": j.CharacterID,
			"status":       j.Status,
			"error":        j.Error,
			"created_at":   j.CreatedAt,
			"updated_at":   j.UpdatedAt,
		},
	})
}
