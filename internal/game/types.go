package game

import (
	"time"

	"github.com/kiliankoe/knowme/internal/catalog"
)

type Phase string

const (
	PhaseNotStarted    Phase = "NotStarted"
	PhaseTurnActive    Phase = "TurnActive"
	PhaseTurnComplete  Phase = "TurnComplete"
	PhaseRoundComplete Phase = "RoundComplete"
	PhaseGameComplete  Phase = "GameComplete"
)

type Player struct {
	ID          int       `json:"id"`
	Username    string    `json:"username"`
	Points      int       `json:"points"`
	IsTurn      bool      `json:"isTurn"`
	HasAnswered bool      `json:"hasAnswered"`
	Answer      string    `json:"answer"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Snapshot is a detached copy of a session, safe to hand to callers.
type Snapshot struct {
	ID              string            `json:"id"`
	Pin             string            `json:"pin"`
	CreatorID       int               `json:"creatorId"`
	Players         []Player          `json:"players"`
	CurrentRound    catalog.Round     `json:"currentRound"`
	Phase           Phase             `json:"phase"`
	CurrentQuestion *catalog.Question `json:"currentQuestion,omitempty"`
	RoundPlayer     int               `json:"roundPlayer,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

type TurnView struct {
	CurrentQuestion catalog.Question `json:"currentQuestion"`
	RoundPlayer     int              `json:"roundPlayer"`
	CurrentRound    catalog.Round    `json:"currentRound"`
	GamePlayers     []Player         `json:"gamePlayers"`
}

type GuessResult struct {
	IsCorrect   bool   `json:"isCorrect"`
	HasAnswered bool   `json:"hasAnswered"`
	Answer      string `json:"answer"`
	AllAnswered bool   `json:"allAnswered"`
}

type RoundSummary struct {
	Pin            string             `json:"pin"`
	RoundEnded     bool               `json:"roundEnded"`
	CurrentRound   catalog.Round      `json:"currentRound"`
	GamePlayers    []Player           `json:"gamePlayers"`
	PosedQuestions []catalog.Question `json:"posedQuestions"`
	EndedAt        time.Time          `json:"endedAt"`
}

// AdvanceResult carries exactly one of Turn or RoundEnd.
type AdvanceResult struct {
	Turn     *TurnView
	RoundEnd *RoundSummary
}

type RoundView struct {
	CurrentRound catalog.Round `json:"currentRound"`
	GamePlayers  []Player      `json:"gamePlayers"`
	GameOver     bool          `json:"gameOver"`
}

type Announcement struct {
	Phase        Phase         `json:"phase"`
	CurrentRound catalog.Round `json:"currentRound"`
	GamePlayers  []Player      `json:"gamePlayers"`
	RightAnswer  string        `json:"right_answer,omitempty"`
}
