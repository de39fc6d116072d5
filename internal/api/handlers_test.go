package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/knowme/internal/catalog"
	"github.com/kiliankoe/knowme/internal/game"
)

func newRouter(t *testing.T) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, err := catalog.New(
		[]catalog.Round{{ID: 1, Name: "Warm-up"}, {ID: 2, Name: "Open"}},
		[]catalog.Question{
			{ID: 1, RoundID: 1, Prompt: "Coffee or tea?", Answers: []string{"Coffee", "Tea"}},
			{ID: 2, RoundID: 1, Prompt: "Sea or mountains?", Answers: []string{"Sea", "Mountains"}},
		},
	)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	rm, err := game.NewRegistry(c, nil, game.WithRandom(func(int) int { return 0 }))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	h := NewHandler(rm, "http://play.test/")
	r := gin.New()
	h.Register(r)
	return r, h
}

func post(t *testing.T, r http.Handler, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, w.Code, w.Body.String())
	}
}

func TestCreateOrJoinAndCheckPin(t *testing.T) {
	r, _ := newRouter(t)

	w, out := post(t, r, "/create-or-join", gin.H{"pin": "1234", "username": "Alice"})
	expectStatus(t, w, http.StatusOK)
	if out["message"] != "new game created" {
		t.Fatalf("unexpected message %v", out["message"])
	}
	if p := out["currentPlayer"].(map[string]any); p["id"].(float64) != 1 {
		t.Fatalf("expected creator id 1, got %v", p["id"])
	}

	w, out = post(t, r, "/create-game", gin.H{"pin": "1234", "player": "Bob"})
	expectStatus(t, w, http.StatusOK)
	if out["message"] != "player joined existing game" {
		t.Fatalf("unexpected message %v", out["message"])
	}

	w, out = post(t, r, "/create-or-join", gin.H{"pin": "1234", "username": "Alice"})
	expectStatus(t, w, http.StatusBadRequest)
	if out["error"] != "DuplicateUsername" {
		t.Fatalf("expected DuplicateUsername, got %v", out["error"])
	}

	w, out = post(t, r, "/check-pin", gin.H{"pin": "1234"})
	expectStatus(t, w, http.StatusOK)
	if out["valid"] != true {
		t.Fatalf("expected valid pin: %v", out)
	}
	players := out["game"].(map[string]any)["players"].([]any)
	if len(players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(players))
	}

	w, out = post(t, r, "/check-pin", gin.H{"pin": "0000"})
	expectStatus(t, w, http.StatusNotFound)
	if out["valid"] != false {
		t.Fatalf("expected invalid pin: %v", out)
	}
}

func TestFullRoundOverHTTP(t *testing.T) {
	r, _ := newRouter(t)
	post(t, r, "/create-or-join", gin.H{"pin": "1234", "username": "Alice"})
	post(t, r, "/create-or-join", gin.H{"pin": "1234", "username": "Bob"})

	w, out := post(t, r, "/start-game", gin.H{"pin": "1234"})
	expectStatus(t, w, http.StatusOK)
	if out["roundPlayer"].(float64) != 1 {
		t.Fatalf("expected Alice to hold the turn, got %v", out["roundPlayer"])
	}
	if q := out["currentQuestion"].(map[string]any); q["id"].(float64) != 1 {
		t.Fatalf("expected question 1, got %v", q["id"])
	}

	w, out = post(t, r, "/submit-guess", gin.H{"pin": "1234", "playerId": 2, "guessedAnswer": "Tea"})
	expectStatus(t, w, http.StatusBadRequest)
	if out["error"] != "InvalidTurn" {
		t.Fatalf("guess before reference answer: %v", out)
	}

	w, out = post(t, r, "/submit-answer", gin.H{"pin": "1234", "rightAnswer": "Tea", "roundPlayer": 2})
	expectStatus(t, w, http.StatusBadRequest)
	if out["error"] != "InvalidTurn" {
		t.Fatalf("answer from non-turn player: %v", out)
	}

	w, out = post(t, r, "/submit-answer", gin.H{"pin": "1234", "rightAnswer": "Tea", "roundPlayer": 1})
	expectStatus(t, w, http.StatusOK)
	if out["right_answer"] != "Tea" {
		t.Fatalf("unexpected right_answer %v", out["right_answer"])
	}

	w, out = post(t, r, "/submit-guess", gin.H{"pin": "1234", "playerId": 99, "guessedAnswer": "Tea"})
	expectStatus(t, w, http.StatusNotFound)
	if out["error"] != "PlayerNotFound" {
		t.Fatalf("unexpected error %v", out["error"])
	}

	w, out = post(t, r, "/submit-guess", gin.H{"pin": "1234", "playerId": 2, "guessedAnswer": "Tea"})
	expectStatus(t, w, http.StatusOK)
	if out["isCorrect"] != true || out["hasAnswered"] != true || out["answer"] != "Tea" {
		t.Fatalf("unexpected guess result %v", out)
	}

	w, out = post(t, r, "/next-turn", gin.H{"pin": "1234"})
	expectStatus(t, w, http.StatusOK)
	if out["roundPlayer"].(float64) != 2 {
		t.Fatalf("expected Bob to hold the turn, got %v", out["roundPlayer"])
	}
	if q := out["currentQuestion"].(map[string]any); q["id"].(float64) != 2 {
		t.Fatalf("expected the unposed question 2, got %v", q["id"])
	}

	w, out = post(t, r, "/next-turn", gin.H{"pin": "1234"})
	expectStatus(t, w, http.StatusOK)
	if out["roundEnded"] != true {
		t.Fatalf("expected round end payload, got %v", out)
	}
	if posed := out["posedQuestions"].([]any); len(posed) != 2 {
		t.Fatalf("expected 2 posed questions, got %d", len(posed))
	}

	w, out = post(t, r, "/show-ranking", gin.H{"pin": "1234"})
	expectStatus(t, w, http.StatusOK)
	if first := out["gamePlayers"].([]any)[0].(map[string]any); first["username"] != "Bob" {
		t.Fatalf("expected Bob to lead the ranking, got %v", first["username"])
	}

	w, out = post(t, r, "/next-round", gin.H{"pin": "1234"})
	expectStatus(t, w, http.StatusOK)
	if out["gameOver"] != true {
		t.Fatalf("round without questions should end the game: %v", out)
	}

	w, out = post(t, r, "/start-game", gin.H{"pin": "1234"})
	expectStatus(t, w, http.StatusBadRequest)
	if out["error"] != "InvalidPhase" {
		t.Fatalf("expected InvalidPhase, got %v", out["error"])
	}
}

func TestUnknownPinIsNotFound(t *testing.T) {
	r, _ := newRouter(t)
	for _, path := range []string{"/start-game", "/next-turn", "/next-round", "/show-answers"} {
		w, out := post(t, r, path, gin.H{"pin": "nope"})
		expectStatus(t, w, http.StatusNotFound)
		if out["error"] != "SessionNotFound" {
			t.Fatalf("%s: expected SessionNotFound, got %v", path, out["error"])
		}
	}
}

func TestCheckPinWithoutPin(t *testing.T) {
	r, _ := newRouter(t)
	for _, body := range []any{gin.H{}, gin.H{"pin": ""}} {
		w, out := post(t, r, "/check-pin", body)
		expectStatus(t, w, http.StatusNotFound)
		if out["valid"] != false {
			t.Fatalf("expected valid=false for %v, got %v", body, out)
		}
	}
}

func TestMissingPinIsBadRequest(t *testing.T) {
	r, _ := newRouter(t)
	w, out := post(t, r, "/start-game", gin.H{})
	expectStatus(t, w, http.StatusBadRequest)
	if out["error"] != "BadRequest" {
		t.Fatalf("expected BadRequest, got %v", out["error"])
	}
}

func TestSuggestPinAndQRCode(t *testing.T) {
	r, h := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pin", nil))
	expectStatus(t, w, http.StatusOK)
	var body struct{ Pin string }
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || len(body.Pin) != 4 {
		t.Fatalf("unexpected pin response %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/qr/"+body.Pin, nil))
	expectStatus(t, w, http.StatusNotFound)

	post(t, r, "/create-or-join", gin.H{"pin": body.Pin, "username": "Alice"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/qr/"+body.Pin, nil))
	expectStatus(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatal("response is not a PNG")
	}

	if got, want := h.JoinURL("12 34"), "http://play.test/?pin=12+34"; got != want {
		t.Fatalf("join url: got %q want %q", got, want)
	}
}

func TestClassify(t *testing.T) {
	wrapped := fmt.Errorf("start: %w", game.ErrSessionNotFound)
	if name, status := classify(wrapped); name != "SessionNotFound" || status != http.StatusNotFound {
		t.Fatalf("wrapped not-found: %s %d", name, status)
	}
	if name, status := classify(game.ErrAlreadyAnswered); name != "AlreadyAnswered" || status != http.StatusBadRequest {
		t.Fatalf("already answered: %s %d", name, status)
	}
	if _, status := classify(errors.New("boom")); status != http.StatusInternalServerError {
		t.Fatalf("unknown error should be 500, got %d", status)
	}
}
