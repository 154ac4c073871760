package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/manonkim2/ai-character-chat/internal/chat"
	"github.com/manonkim2/ai-character-chat/internal/common"
)

type createCharacterReq struct {
	Name      string `json:"name"`
	Prompt    string `json:"prompt"`
	Thumbnail string `json:"thumbnail"`
}

func (h *Handler) CreateCharacter(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		unauthorized(c)
		return
	}

	var req createCharacterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ch, err := h.ChatSvc.CreateCharacter(c.Request.Context(), uid, req.Name, req.Prompt, req.Thumbnail)
	if err != nil {
		if errors.Is(err, chat.ErrNameRequired) || errors.Is(err, chat.ErrPromptRequired) {
			common.Fail(c, http.StatusBadRequest, 10004, err.Error())
			return
		}
		log.Printf("[CreateCharacter] failed uid=%s err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create character")
		return
	}

	common.Ok(c, gin.H{"character": ch})
}

func (h *Handler) ListCharacters(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		unauthorized(c)
		return
	}

	chars, err := h.ChatSvc.ListCharacters(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to list characters")
		return
	}

	common.Ok(c, gin.H{"characters": chars})
}

func (h *Handler) DeleteCharacter(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		unauthorized(c)
		return
	}
	id := c.Param("id")

	err := h.ChatSvc.DeleteCharacter(c.Request.Context(), uid, id)
	if err != nil {
		if errors.Is(err, chat.ErrDefaultLocked) {
			common.Fail(c, http.StatusBadRequest, 10005, err.Error())
			return
		}
		if chat.IsNotFound(err) {
			common.Fail(c, http.StatusNotFound, 40004, "character not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to delete character")
		return
	}

	common.Ok(c, gin.H{"id": id})
}
