package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/modelarena/arena/internal/services/arena/engine"
	"github.com/modelarena/arena/internal/services/arena/gateway"
	"github.com/modelarena/arena/internal/services/arena/storage/sqlite"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "arena.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	gw := gateway.Func(func(_ context.Context, role gateway.Role, request gateway.Context) (string, error) {
		switch role {
		case gateway.RoleTopicSelect:
			return "History", nil
		case gateway.RoleQuestionAuthor:
			return `{"question": "Who built the pyramids?", "difficulty": "easy"}`, nil
		case gateway.RoleAnswer:
			return "Answer from " + request.ActorID, nil
		case gateway.RoleJudge:
			body := ""
			for _, answer := range request.Answers {
				if answer.SubjectID == request.ActorID {
					continue
				}
				if body != "" {
					body += ","
				}
				body += fmt.Sprintf(`{"subject_id": %q, "score": 7}`, answer.SubjectID)
			}
			return "[" + body + "]", nil
		default:
			return "", fmt.Errorf("unexpected role %q", role)
		}
	})

	eng := engine.New(engine.Options{
		Stores:  store.Stores(),
		Gateway: gw,
	})
	return NewServer(eng, store.Stores())
}

func doJSON(t *testing.T, server *Server, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	decoded := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, decoded
}

func createParticipants(t *testing.T, server *Server, names ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(names))
	for _, name := range names {
		status, body := doJSON(t, server, http.MethodPost, "/api/admin/participants", map[string]any{
			"name":  name,
			"model": name + "-v1",
		})
		if status != http.StatusCreated {
			t.Fatalf("create participant %s: status %d (%v)", name, status, body)
		}
		ids = append(ids, body["id"].(string))
	}
	return ids
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	server := testServer(t)
	ids := createParticipants(t, server, "Alpha", "Beta", "Gamma")

	status, body := doJSON(t, server, http.MethodPost, "/api/sessions", map[string]any{
		"total_rounds":    1,
		"participant_ids": ids,
	})
	if status != http.StatusCreated {
		t.Fatalf("create session: status %d (%v)", status, body)
	}
	sessionID := body["id"].(string)
	if body["status"] != "created" {
		t.Fatalf("session status = %v, want created", body["status"])
	}

	status, body = doJSON(t, server, http.MethodPost, "/api/sessions/"+sessionID+"/start", nil)
	if status != http.StatusOK || body["status"] != "running" {
		t.Fatalf("start: status %d (%v)", status, body)
	}

	// Eight advances complete a three-participant round.
	for i := 0; i < 8; i++ {
		status, body = doJSON(t, server, http.MethodPost, "/api/advance", nil)
		if status != http.StatusOK {
			t.Fatalf("advance %d: status %d (%v)", i, status, body)
		}
		step := body["step"].(map[string]any)
		if step["status"] != "success" {
			t.Fatalf("advance %d: step %v", i, step)
		}
	}

	status, body = doJSON(t, server, http.MethodGet, "/api/sessions/"+sessionID, nil)
	if status != http.StatusOK || body["status"] != "completed" {
		t.Fatalf("final session: status %d (%v)", status, body)
	}

	status, body = doJSON(t, server, http.MethodGet, "/api/sessions/"+sessionID+"/rounds", nil)
	if status != http.StatusOK {
		t.Fatalf("list rounds: status %d", status)
	}
	rounds := body["rounds"].([]any)
	if len(rounds) != 1 {
		t.Fatalf("rounds = %d, want 1", len(rounds))
	}
	round := rounds[0].(map[string]any)
	if round["status"] != "completed" || round["topic"] != "History" {
		t.Fatalf("round = %v", round)
	}
	scores := round["scores"].(map[string]any)
	if len(scores) != 3 {
		t.Fatalf("scores = %v, want 3 entries", scores)
	}
}

func TestAdvanceWithoutSession(t *testing.T) {
	server := testServer(t)

	status, body := doJSON(t, server, http.MethodPost, "/api/advance", nil)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("advance: status %d (%v)", status, body)
	}
	if body["error"] == nil {
		t.Fatal("error body missing")
	}
}

func TestCreateSessionValidation(t *testing.T) {
	server := testServer(t)
	ids := createParticipants(t, server, "Alpha")

	status, _ := doJSON(t, server, http.MethodPost, "/api/sessions", map[string]any{
		"total_rounds":    0,
		"participant_ids": ids,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("zero rounds: status %d, want 400", status)
	}

	status, _ = doJSON(t, server, http.MethodPost, "/api/sessions", map[string]any{
		"total_rounds":    1,
		"participant_ids": ids,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("single participant: status %d, want 400", status)
	}

	status, _ = doJSON(t, server, http.MethodPost, "/api/sessions", map[string]any{
		"total_rounds":    1,
		"participant_ids": []string{ids[0], "missing"},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("unknown participant: status %d, want 400", status)
	}
}

func TestOnlyOneActiveSession(t *testing.T) {
	server := testServer(t)
	ids := createParticipants(t, server, "Alpha", "Beta")

	payload := map[string]any{"total_rounds": 1, "participant_ids": ids}
	status, _ := doJSON(t, server, http.MethodPost, "/api/sessions", payload)
	if status != http.StatusCreated {
		t.Fatalf("first create: status %d", status)
	}
	status, _ = doJSON(t, server, http.MethodPost, "/api/sessions", payload)
	if status != http.StatusConflict {
		t.Fatalf("second create: status %d, want 409", status)
	}
}

func TestSettingsPartialUpdate(t *testing.T) {
	server := testServer(t)

	status, body := doJSON(t, server, http.MethodGet, "/api/admin/settings", nil)
	if status != http.StatusOK || body["execution_mode"] != "manual" {
		t.Fatalf("defaults: status %d (%v)", status, body)
	}

	status, body = doJSON(t, server, http.MethodPut, "/api/admin/settings", map[string]any{
		"step_delay_ms": 500,
	})
	if status != http.StatusOK {
		t.Fatalf("update: status %d (%v)", status, body)
	}
	if body["step_delay_ms"] != float64(500) {
		t.Fatalf("step_delay_ms = %v, want 500", body["step_delay_ms"])
	}
	if body["execution_mode"] != "manual" {
		t.Fatalf("execution_mode changed unexpectedly: %v", body["execution_mode"])
	}

	status, _ = doJSON(t, server, http.MethodPut, "/api/admin/settings", map[string]any{
		"execution_mode": "warp-speed",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("bad mode: status %d, want 400", status)
	}
}

func TestParticipantCRUD(t *testing.T) {
	server := testServer(t)

	status, body := doJSON(t, server, http.MethodPost, "/api/admin/participants", map[string]any{
		"name":  "Alpha",
		"model": "alpha-v1",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: status %d (%v)", status, body)
	}
	participantID := body["id"].(string)
	if body["enabled"] != true {
		t.Fatal("participants default to enabled")
	}

	status, body = doJSON(t, server, http.MethodPut, "/api/admin/participants/"+participantID, map[string]any{
		"enabled": false,
	})
	if status != http.StatusOK || body["enabled"] != false {
		t.Fatalf("disable: status %d (%v)", status, body)
	}

	status, body = doJSON(t, server, http.MethodGet, "/api/admin/participants", nil)
	if status != http.StatusOK {
		t.Fatalf("list: status %d", status)
	}
	if len(body["participants"].([]any)) != 1 {
		t.Fatalf("participants = %v", body["participants"])
	}

	status, _ = doJSON(t, server, http.MethodDelete, "/api/admin/participants/"+participantID, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete: status %d, want 204", status)
	}

	status, _ = doJSON(t, server, http.MethodGet, "/api/admin/participants", nil)
	if status != http.StatusOK {
		t.Fatalf("list after delete: status %d", status)
	}

	status, _ = doJSON(t, server, http.MethodPost, "/api/admin/participants", map[string]any{"name": "NoModel"})
	if status != http.StatusBadRequest {
		t.Fatalf("missing model: status %d, want 400", status)
	}
}

func TestStateSnapshotEndpoint(t *testing.T) {
	server := testServer(t)
	ids := createParticipants(t, server, "Alpha", "Beta")

	status, body := doJSON(t, server, http.MethodGet, "/api/state", nil)
	if status != http.StatusOK {
		t.Fatalf("empty state: status %d", status)
	}
	if body["session"] != nil {
		t.Fatalf("session = %v, want absent", body["session"])
	}

	status, created := doJSON(t, server, http.MethodPost, "/api/sessions", map[string]any{
		"total_rounds":    1,
		"participant_ids": ids,
	})
	if status != http.StatusCreated {
		t.Fatalf("create: status %d", status)
	}
	sessionID := created["id"].(string)
	if status, _ := doJSON(t, server, http.MethodPost, "/api/sessions/"+sessionID+"/start", nil); status != http.StatusOK {
		t.Fatalf("start: status %d", status)
	}

	status, body = doJSON(t, server, http.MethodGet, "/api/state", nil)
	if status != http.StatusOK {
		t.Fatalf("state: status %d", status)
	}
	session := body["session"].(map[string]any)
	if session["id"] != sessionID {
		t.Fatalf("session id = %v, want %v", session["id"], sessionID)
	}
	round := body["round"].(map[string]any)
	if round["round_number"] != float64(1) || round["status"] != "created" {
		t.Fatalf("round = %v", round)
	}
	if len(body["participants"].([]any)) != 2 {
		t.Fatalf("participants = %v", body["participants"])
	}
}
