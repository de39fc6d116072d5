package game

import "time"

const (
	EventGameCreated          = "game-created"
	EventPlayerJoined         = "player-joined"
	EventGameStarted          = "game-started"
	EventRightAnswerSubmitted = "right-answer-submitted"
	EventAllAnswered          = "all-answered"
	EventNextTurn             = "next-turn"
	EventRoundEnded           = "round-ended"
	EventNextRound            = "next-round"
	EventGameEnded            = "game-ended"
	EventShowAnswers          = "show-answers"
	EventShowRanking          = "show-ranking"
	EventShowEndRound         = "show-end-round"
)

// Event is a state change addressed to every participant of a session.
type Event struct {
	Name    string    `json:"type"`
	Pin     string    `json:"pin"`
	Payload any       `json:"data"`
	At      time.Time `json:"at"`
}

// Notifier receives events while the session lock is held, so Publish must
// not block and must not call back into the Registry.
type Notifier interface {
	Publish(evt Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(Event) {}

type rightAnswerNotice struct {
	RoundPlayer int      `json:"roundPlayer"`
	GamePlayers []Player `json:"gamePlayers"`
}

type allAnsweredNotice struct {
	RightAnswer string   `json:"right_answer"`
	GamePlayers []Player `json:"gamePlayers"`
}

func isAnnouncement(name string) bool {
	switch name {
	case EventShowAnswers, EventShowRanking, EventShowEndRound:
		return true
	}
	return false
}
