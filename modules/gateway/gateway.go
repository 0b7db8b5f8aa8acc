// Package gateway bridges client WebSocket connections to the room
// directory, message store and broadcast bus. Each connection runs three
// supervised units (reader, writer, bus-listener); if any one of them ends,
// the others are cancelled and the session tears down exactly once.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"

	"github.com/hodanmillion/TapIn2025-sub000/modules/auth"
	"github.com/hodanmillion/TapIn2025-sub000/modules/bus"
	"github.com/hodanmillion/TapIn2025-sub000/modules/directory"
	"github.com/hodanmillion/TapIn2025-sub000/modules/history"
)

// wsConn is the slice of the WebSocket connection the session engine
// needs. *websocket.Conn satisfies it; tests substitute a fake.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// handshakeTimeout bounds how long a fresh connection may take to send a
// valid join frame.
const handshakeTimeout = 30 * time.Second

// Gateway holds the collaborators shared by all sessions.
type Gateway struct {
	directory *directory.Directory
	store     *history.Repository
	bus       bus.Bus
	auth      auth.Authenticator
	tokens    *auth.JWTManager
	logger    types.Logger

	sessions sync.Map // socketID -> *Session
}

// New creates a Gateway. The JWT manager doubles as the validate
// collaborator and the dev-mode token issuer.
func New(dir *directory.Directory, store *history.Repository, b bus.Bus, tokens *auth.JWTManager, logger types.Logger) *Gateway {
	return &Gateway{
		directory: dir,
		store:     store,
		bus:       b,
		auth:      tokens,
		tokens:    tokens,
		logger:    logger,
	}
}

// HandleConnection owns one client socket from accept to close. It blocks
// until the session is fully torn down.
func (g *Gateway) HandleConnection(ctx context.Context, conn wsConn) {
	s := newSession(g, conn)
	g.sessions.Store(s.socketID, s)
	defer g.sessions.Delete(s.socketID)
	defer conn.Close()

	g.logger.Info("WebSocket connected", "socketID", s.socketID)

	if err := s.handshake(ctx); err != nil {
		g.logger.Info("WebSocket handshake rejected", "socketID", s.socketID, "error", err)
		return
	}
	s.run(ctx)

	g.logger.Info("WebSocket disconnected", "socketID", s.socketID, "userID", s.identity.UserID)
}

// CloseAll force-closes every live session; used during module shutdown.
func (g *Gateway) CloseAll() {
	g.sessions.Range(func(_, value any) bool {
		if s, ok := value.(*Session); ok {
			s.Close()
		}
		return true
	})
}

// SessionCount returns the number of live sessions on this instance.
func (g *Gateway) SessionCount() int {
	count := 0
	g.sessions.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// safeCtx returns a bounded context for teardown work that must not inherit
// an already-cancelled parent.
func safeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
