// Package api exposes the game registry over HTTP.
package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/knowme/internal/game"
	"github.com/kiliankoe/knowme/internal/metrics"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

type Handler struct {
	rm        *game.Registry
	publicURL string
}

func NewHandler(rm *game.Registry, publicURL string) *Handler {
	return &Handler{rm: rm, publicURL: strings.TrimRight(publicURL, "/")}
}

// Register mounts every game route on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/check-pin", h.CheckPin)
	r.POST("/create-or-join", h.CreateOrJoin)
	r.POST("/create-game", h.CreateGame)
	r.POST("/start-game", h.StartGame)
	r.POST("/submit-answer", h.SubmitAnswer)
	r.POST("/submit-guess", h.SubmitGuess)
	r.POST("/next-turn", h.NextTurn)
	r.POST("/next-round", h.NextRound)
	for _, name := range []string{game.EventShowAnswers, game.EventShowRanking, game.EventShowEndRound} {
		r.POST("/"+name, h.announce(name))
	}
	r.GET("/pin", h.SuggestPin)
	r.GET("/qr/:pin", h.QRCode)
}

type pinRequest struct {
	Pin string `json:"pin" binding:"required"`
}

type joinRequest struct {
	Pin      string `json:"pin" binding:"required"`
	Username string `json:"username"`
}

type legacyCreateRequest struct {
	Pin    string `json:"pin" binding:"required"`
	Player string `json:"player"`
}

type answerRequest struct {
	Pin         string `json:"pin" binding:"required"`
	RightAnswer string `json:"rightAnswer"`
	RoundPlayer int    `json:"roundPlayer" binding:"required"`
}

type guessRequest struct {
	Pin           string `json:"pin" binding:"required"`
	PlayerID      int    `json:"playerId" binding:"required"`
	GuessedAnswer string `json:"guessedAnswer"`
}

// CheckPin answers every pin that resolves to no game, missing ones
// included, with 404 {valid:false}.
func (h *Handler) CheckPin(c *gin.Context) {
	var req pinRequest
	_ = c.ShouldBindJSON(&req)
	snap, err := h.rm.Resolve(req.Pin)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"valid": false, "message": "invalid PIN"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "message": "PIN is valid", "game": snap})
}

func (h *Handler) CreateOrJoin(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.admit(c, req.Pin, req.Username)
}

// CreateGame is the older creation route; it joins existing games too.
func (h *Handler) CreateGame(c *gin.Context) {
	var req legacyCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.admit(c, req.Pin, req.Player)
}

func (h *Handler) admit(c *gin.Context, pin, username string) {
	snap, player, err := h.rm.Admit(pin, username)
	if err != nil {
		fail(c, err)
		return
	}
	msg := "player joined existing game"
	if player.ID == snap.CreatorID {
		msg = "new game created"
	}
	log.Info().Str("pin", pin).Int("playerId", player.ID).Str("username", player.Username).Msg(msg)
	c.JSON(http.StatusOK, gin.H{"message": msg, "game": snap, "currentPlayer": player})
}

func (h *Handler) StartGame(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	turn, err := h.rm.StartGame(req.Pin)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":         "game started",
		"currentQuestion": turn.CurrentQuestion,
		"roundPlayer":     turn.RoundPlayer,
		"currentRound":    turn.CurrentRound,
		"gamePlayers":     turn.GamePlayers,
	})
}

func (h *Handler) SubmitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	answer, err := h.rm.SubmitReferenceAnswer(req.Pin, req.RightAnswer, req.RoundPlayer)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"right_answer": answer})
}

func (h *Handler) SubmitGuess(c *gin.Context) {
	var req guessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.rm.SubmitGuess(req.Pin, req.PlayerID, req.GuessedAnswer)
	if err != nil {
		fail(c, err)
		return
	}
	metrics.ObserveGuess(res.IsCorrect)
	c.JSON(http.StatusOK, gin.H{"isCorrect": res.IsCorrect, "hasAnswered": res.HasAnswered, "answer": res.Answer})
}

// NextTurn answers with the new turn, or with the round summary once every
// player has held the turn.
func (h *Handler) NextTurn(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.rm.AdvanceTurn(req.Pin)
	if err != nil {
		fail(c, err)
		return
	}
	if res.RoundEnd != nil {
		c.JSON(http.StatusOK, res.RoundEnd)
		return
	}
	c.JSON(http.StatusOK, res.Turn)
}

func (h *Handler) NextRound(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := h.rm.NextRound(req.Pin)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) announce(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		a, err := h.rm.Announce(req.Pin, name)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func (h *Handler) SuggestPin(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pin": h.rm.SuggestPin()})
}

// QRCode renders a PNG linking to the join page of an existing game.
func (h *Handler) QRCode(c *gin.Context) {
	pin := c.Param("pin")
	if _, err := h.rm.Resolve(pin); err != nil {
		fail(c, err)
		return
	}
	png, err := qrcode.Encode(h.JoinURL(pin), qrcode.Medium, qrSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) JoinURL(pin string) string {
	return h.publicURL + "/?pin=" + url.QueryEscape(pin)
}
