package socket

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// ErrNoCredential is returned when a handshake carries no credential at all.
var ErrNoCredential = errors.New("no credential provided")

const credentialCookie = "loginToken"

// Authenticator validates a handshake credential and resolves the identity
// behind it.
type Authenticator interface {
	IdentityFromBearer(token []byte) (domain.Identity, error)
}

// credentialFromRequest extracts the handshake credential. The structured
// sources (token query parameter, Authorization header) take precedence
// over the loginToken cookie.
func credentialFromRequest(r *http.Request) ([]byte, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		return []byte(token), nil
	}
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(h), "Bearer "); ok && rest != "" {
			return []byte(rest), nil
		}
		return nil, ErrNoCredential
	}
	if cookie, err := r.Cookie(credentialCookie); err == nil && cookie.Value != "" {
		return []byte(cookie.Value), nil
	}
	return nil, ErrNoCredential
}

// Handler upgrades authenticated requests to websocket connections and
// admits them into the registry. A connection that fails authentication is
// rejected before the upgrade: it is never admitted and never receives the
// connected acknowledgment.
func Handler(registry *Registry, router *Router, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	if logger == nil {
		logger = log.StandardLogger()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// The HTTP surface already allows any origin; the socket follows.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return func(c echo.Context) error {
		cred, err := credentialFromRequest(c.Request())
		if err != nil {
			logger.Info("socket handshake rejected: no credential")
			return c.String(http.StatusUnauthorized, "missing credential")
		}
		identity, err := auth.IdentityFromBearer(cred)
		if err != nil {
			logger.Infof("socket handshake rejected: %v", err)
			return c.String(http.StatusUnauthorized, "invalid credential")
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// Upgrade has already written its own error response.
			return nil
		}

		client := newClient(uuid.NewString(), identity, conn, registry, router, logger)
		if err := registry.Admit(client); err != nil {
			client.log.Errorf("admit: %v", err)
			_ = conn.Close()
			return nil
		}
		registry.Join(client.id, userTopicPrefix+identity.ID)
		client.log.Info("socket connected")

		go client.writePump()
		client.sendEvent(evtConnected, connectedEvent{ConnID: client.id, Member: identity.Member()})
		go client.readPump()
		return nil
	}
}
