package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/hodanmillion/TapIn2025-sub000/domain/chat"
)

// newTestAPI wires the REST routes over an in-memory gateway; fiber's Test
// dispatches requests without a listening socket.
func newTestAPI(t *testing.T) (*fiber.App, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	h := NewHandlers(env.gateway)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/auth/token", h.IssueToken)
	api.Get("/rooms/:id", h.GetRoom)
	api.Get("/rooms/:id/history", h.GetRoomHistory)
	api.Get("/cells/:id/neighbors", h.GetCellNeighbors)
	api.Patch("/messages/:id", h.EditMessage)
	api.Delete("/messages/:id", h.DeleteMessage)
	api.Post("/messages/:id/reactions", h.AddReaction)
	api.Delete("/messages/:id/reactions/:emoji", h.RemoveReaction)
	return app, env
}

func doJSON(t *testing.T, app *fiber.App, method, target, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestIssueTokenRoundtrip(t *testing.T) {
	app, env := newTestAPI(t)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/token", "", map[string]string{
		"user_id": "u1", "username": "alice",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	identity, err := env.tokens.Validate(body.Token)
	if err != nil {
		t.Fatalf("issued token should validate: %v", err)
	}
	if identity.UserID != "u1" || identity.Username != "alice" {
		t.Errorf("identity = %+v, want u1/alice", identity)
	}
}

func TestIssueTokenRequiresFields(t *testing.T) {
	app, _ := newTestAPI(t)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/token", "", map[string]string{"user_id": "u1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	app, _ := newTestAPI(t)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/rooms/nowhere", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestGetRoomStatus(t *testing.T) {
	app, env := newTestAPI(t)
	ctx := context.Background()

	key := chat.Coordinate{Lat: 10, Lon: 20}
	if _, err := env.dir.ResolveOrCreate(ctx, key); err != nil {
		t.Fatalf("ResolveOrCreate() error: %v", err)
	}
	if _, err := env.dir.Join(ctx, key.RoomID()); err != nil {
		t.Fatalf("Join() error: %v", err)
	}

	resp := doJSON(t, app, http.MethodGet, "/api/v1/rooms/10_20", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		RoomID    string `json:"room_id"`
		UserCount int64  `json:"user_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.RoomID != "10_20" || body.UserCount != 1 {
		t.Errorf("room status = %+v, want 10_20 with one member", body)
	}
}

func TestGetRoomHistoryLimit(t *testing.T) {
	app, env := newTestAPI(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.store.Insert(ctx, "10_20", "u1", "alice", "msg"); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	resp := doJSON(t, app, http.MethodGet, "/api/v1/rooms/10_20/history?limit=2", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Messages []chat.Message `json:"messages"`
		Total    int            `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Total != 2 || len(body.Messages) != 2 {
		t.Errorf("history total = %d with %d messages, want 2", body.Total, len(body.Messages))
	}
}

func TestGetCellNeighborsRejectsBadCell(t *testing.T) {
	app, _ := newTestAPI(t)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/cells/not-a-cell/neighbors", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestEditMessageRequiresAuth(t *testing.T) {
	app, _ := newTestAPI(t)

	resp := doJSON(t, app, http.MethodPatch, "/api/v1/messages/m1", "", map[string]string{"content": "new"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestEditMessageOwnership(t *testing.T) {
	app, env := newTestAPI(t)
	ctx := context.Background()

	msg, err := env.store.Insert(ctx, "10_20", "u1", "alice", "original")
	if err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	ownerToken := env.token(t, "u1", "alice")
	otherToken := env.token(t, "u2", "bob")

	resp := doJSON(t, app, http.MethodPatch, "/api/v1/messages/"+msg.ID, otherToken, map[string]string{"content": "hijacked"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign edit status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	resp = doJSON(t, app, http.MethodPatch, "/api/v1/messages/"+msg.ID, ownerToken, map[string]string{"content": "edited"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner edit status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var edited chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&edited); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if edited.Content != "edited" || edited.EditedAt == nil {
		t.Errorf("edited message = %+v, want new content with edited_at set", edited)
	}
}

func TestDeleteMessageTombstones(t *testing.T) {
	app, env := newTestAPI(t)
	ctx := context.Background()

	msg, err := env.store.Insert(ctx, "10_20", "u1", "alice", "going away")
	if err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	resp := doJSON(t, app, http.MethodDelete, "/api/v1/messages/"+msg.ID, env.token(t, "u1", "alice"), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	listed, err := env.store.ListRecent(ctx, "10_20", 0)
	if err != nil {
		t.Fatalf("ListRecent() error: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("deleted message should not be listed, got %d rows", len(listed))
	}
}

func TestReactionLifecycle(t *testing.T) {
	app, env := newTestAPI(t)
	ctx := context.Background()

	msg, err := env.store.Insert(ctx, "10_20", "u1", "alice", "react to me")
	if err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	token := env.token(t, "u2", "bob")

	resp := doJSON(t, app, http.MethodPost, "/api/v1/messages/"+msg.ID+"/reactions", token, map[string]string{"emoji": "+1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	got, err := env.store.Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(got.Reactions) != 1 {
		t.Fatalf("reactions = %d, want 1", len(got.Reactions))
	}

	resp = doJSON(t, app, http.MethodDelete, "/api/v1/messages/"+msg.ID+"/reactions/+1", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("remove status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	got, err = env.store.Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(got.Reactions) != 0 {
		t.Errorf("reactions after removal = %d, want 0", len(got.Reactions))
	}
}
