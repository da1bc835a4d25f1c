package api

import (
	"net/http"
	"strconv"
	"strings"

	midsec "PPChat/middleware/security"
	"PPChat/module/chat/model"
	"PPChat/service/chat"
	"PPChat/tools/errs"

	"github.com/gin-gonic/gin"
)

type handler struct {
	hub    *chat.Hub
	authOn bool
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": h.hub.Stats()})
}

func (h *handler) online(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.hub.Online()})
}

func (h *handler) presence(c *gin.Context) {
	userID := c.Param("userId")
	c.JSON(http.StatusOK, gin.H{"userId": userID, "online": h.hub.IsOnline(userID)})
}

type createChatReq struct {
	Name         string   `json:"name"`
	IsGroup      bool     `json:"isGroup"`
	Participants []string `json:"participants"`
	CreatorID    string   `json:"creatorId"`
}

func (h *handler) createChat(c *gin.Context) {
	var req createChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.ErrArgs.WrapMsg("bad body", "err", err))
		return
	}
	creator := midsec.UserID(c)
	if creator == "" {
		if h.authOn {
			writeError(c, errs.ErrIdentityMismatch.WrapMsg("no identity"))
			return
		}
		creator = strings.TrimSpace(req.CreatorID)
	}
	if creator == "" {
		writeError(c, errs.ErrArgs.WrapMsg("creatorId is required"))
		return
	}

	chatRow, err := h.hub.CreateChat(c.Request.Context(), model.NewChat{
		Name:         req.Name,
		IsGroup:      req.IsGroup,
		CreatorID:    creator,
		Participants: req.Participants,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chatRow)
}

// messages returns a chat's stored history, oldest first. Clients call it
// after (re)connecting.
func (h *handler) messages(c *gin.Context) {
	chatID := c.Param("id")
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(c, errs.ErrArgs.WrapMsg("bad limit", "limit", s))
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	store := h.hub.Store()
	if userID := midsec.UserID(c); userID != "" {
		participants, err := store.GetChatParticipants(ctx, chatID)
		if err != nil {
			writeError(c, err)
			return
		}
		member := false
		for _, p := range participants {
			if p == userID {
				member = true
				break
			}
		}
		if !member {
			writeError(c, errs.ErrNoPermission.WrapMsg("not a participant", "chatId", chatID))
			return
		}
	}

	msgs, err := store.ListMessages(ctx, chatID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errs.Code(err) {
	case errs.ArgsError:
		status = http.StatusBadRequest
	case errs.IdentityError, errs.NotJoinedError:
		status = http.StatusUnauthorized
	case errs.NoPermissionError:
		status = http.StatusForbidden
	case errs.RecordNotFoundError:
		status = http.StatusNotFound
	case errs.StorageError:
		status = http.StatusServiceUnavailable
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"code": errs.Code(err), "error": errs.Message(err)})
}
