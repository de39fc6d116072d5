package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/knowme/internal/game"
	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errorNames = []struct {
	err    error
	name   string
	status int
}{
	{game.ErrSessionNotFound, "SessionNotFound", http.StatusNotFound},
	{game.ErrPlayerNotFound, "PlayerNotFound", http.StatusNotFound},
	{game.ErrDuplicateUsername, "DuplicateUsername", http.StatusBadRequest},
	{game.ErrRoundExhausted, "RoundExhausted", http.StatusBadRequest},
	{game.ErrInvalidTurn, "InvalidTurn", http.StatusBadRequest},
	{game.ErrInvalidPhase, "InvalidPhase", http.StatusBadRequest},
	{game.ErrAlreadyAnswered, "AlreadyAnswered", http.StatusBadRequest},
	{game.ErrEmptyPin, "EmptyPin", http.StatusBadRequest},
	{game.ErrEmptyUsername, "EmptyUsername", http.StatusBadRequest},
	{game.ErrEmptyAnswer, "EmptyAnswer", http.StatusBadRequest},
	{game.ErrUnknownAnnounce, "UnknownAnnouncement", http.StatusBadRequest},
}

// classify maps a game error to its wire name and HTTP status. Anything
// unknown is an internal error.
func classify(err error) (string, int) {
	for _, e := range errorNames {
		if errors.Is(err, e.err) {
			return e.name, e.status
		}
	}
	return "Internal", http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	name, status := classify(err)
	ev := log.Debug()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("path", c.FullPath()).Str("error", name).Msg("request failed")
	c.JSON(status, ErrorResponse{Error: name, Message: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "BadRequest", Message: err.Error()})
}
