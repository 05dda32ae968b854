package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/LovationAdmin/horizon-api/middleware"
	"github.com/LovationAdmin/horizon-api/services"
	"github.com/LovationAdmin/horizon-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"
)

const wsUserKey = "user_id"

// WSHandler keeps one websocket per open dashboard and tells it when the
// user's linked accounts change.
type WSHandler struct {
	M *melody.Melody
}

var _ services.ViewInvalidator = (*WSHandler)(nil)

func NewWSHandler() *WSHandler {
	m := melody.New()

	// Clients only listen; they never send large frames.
	m.Config.MaxMessageSize = 4 * 1024

	// Keep-alive for hosts that drop idle connections
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleConnect(func(s *melody.Session) {
		utils.LogWebSocket("CONNECTED", sessionUserID(s))
	})

	m.HandleDisconnect(func(s *melody.Session) {
		utils.LogWebSocket("DISCONNECTED", sessionUserID(s))
	})

	m.HandleError(func(s *melody.Session, err error) {
		utils.SafeWarn("⚠️ WebSocket error for user %s: %v", utils.MaskID(sessionUserID(s)), err)
	})

	return &WSHandler{M: m}
}

func sessionUserID(s *melody.Session) string {
	id, _ := s.Get(wsUserKey)
	userID, _ := id.(string)
	return userID
}

// HandleWS upgrades a signed-in request to a websocket tagged with the user.
func (h *WSHandler) HandleWS(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	err := h.M.HandleRequestWithKeys(c.Writer, c.Request, map[string]any{wsUserKey: user.ID})
	if err != nil {
		utils.SafeError("❌ Failed to upgrade websocket: %v", err)
	}
}

type wsSignal struct {
	Type string `json:"type"`
	At   string `json:"at"`
}

// Invalidate pushes an accounts_updated signal to every socket of the user.
func (h *WSHandler) Invalidate(userID string) {
	h.broadcast(userID, "accounts_updated")
}

func (h *WSHandler) broadcast(userID, signal string) {
	msg, err := json.Marshal(wsSignal{Type: signal, At: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return
	}

	err = h.M.BroadcastFilter(msg, func(s *melody.Session) bool {
		return sessionUserID(s) == userID
	})
	if err != nil {
		utils.SafeWarn("⚠️ Error broadcasting %s to user %s: %v", signal, utils.MaskID(userID), err)
	}
}

func (h *WSHandler) Close() error {
	return h.M.Close()
}
