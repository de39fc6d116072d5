package game

import (
	"errors"

	"github.com/kiliankoe/knowme/internal/catalog"
)

// StartGame opens the first turn of the current round. The session creator
// always holds the opening turn.
func (r *Registry) StartGame(pin string) (TurnView, error) {
	var view TurnView
	err := r.mutate(pin, func(s *SessionCtx) error {
		if s.phase != PhaseNotStarted {
			return ErrInvalidPhase
		}
		if _, err := r.selectQuestion(s); err != nil {
			return err
		}
		s.beginTurn(s.CreatorID)
		view = r.turnView(s)
		r.publish(s, EventGameStarted, view)
		return nil
	})
	return view, err
}

// SubmitReferenceAnswer records the turn holder's own answer, which the
// other players then try to guess.
func (r *Registry) SubmitReferenceAnswer(pin, answer string, turnPlayerID int) (string, error) {
	err := r.mutate(pin, func(s *SessionCtx) error {
		p := s.player(turnPlayerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if s.phase != PhaseTurnActive {
			return ErrInvalidPhase
		}
		if !p.IsTurn || s.reference != nil {
			return ErrInvalidTurn
		}
		if answer == "" {
			return ErrEmptyAnswer
		}
		ref := answer
		s.reference = &ref
		p.HasAnswered = true
		r.publish(s, EventRightAnswerSubmitted, rightAnswerNotice{RoundPlayer: p.ID, GamePlayers: s.roster()})
		r.completeTurnIfAnswered(s)
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// SubmitGuess scores a non-turn player's guess of the reference answer.
func (r *Registry) SubmitGuess(pin string, playerID int, guess string) (GuessResult, error) {
	var res GuessResult
	err := r.mutate(pin, func(s *SessionCtx) error {
		p := s.player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if s.phase == PhaseTurnActive && s.reference == nil {
			return ErrInvalidTurn
		}
		if s.phase != PhaseTurnActive {
			return ErrInvalidPhase
		}
		if p.IsTurn {
			return ErrInvalidTurn
		}
		if p.HasAnswered {
			return ErrAlreadyAnswered
		}
		verdict := evaluateGuess(s, p, guess)
		p.HasAnswered = true
		p.Answer = guess
		res = GuessResult{
			IsCorrect:   verdict == Correct,
			HasAnswered: true,
			Answer:      guess,
			AllAnswered: r.completeTurnIfAnswered(s),
		}
		return nil
	})
	return res, err
}

// AdvanceTurn hands the turn to the next player who has not held it this
// round, or closes the round when nobody is left or the questions run out.
func (r *Registry) AdvanceTurn(pin string) (AdvanceResult, error) {
	var res AdvanceResult
	err := r.mutate(pin, func(s *SessionCtx) error {
		if s.phase != PhaseTurnActive && s.phase != PhaseTurnComplete {
			return ErrInvalidPhase
		}
		next := s.nextTurnHolder()
		if next == 0 {
			sum := r.endRound(s)
			res.RoundEnd = &sum
			return nil
		}
		if _, err := r.selectQuestion(s); err != nil {
			if !errors.Is(err, ErrRoundExhausted) {
				return err
			}
			sum := r.endRound(s)
			res.RoundEnd = &sum
			return nil
		}
		s.beginTurn(next)
		view := r.turnView(s)
		res.Turn = &view
		r.publish(s, EventNextTurn, view)
		return nil
	})
	return res, err
}

// NextRound moves a completed round on to the next round that still has
// questions, or ends the game when none is left.
func (r *Registry) NextRound(pin string) (RoundView, error) {
	var view RoundView
	err := r.mutate(pin, func(s *SessionCtx) error {
		if s.phase != PhaseRoundComplete {
			return ErrInvalidPhase
		}
		s.resetTurnState()
		next := -1
		for i := s.roundIx + 1; i < len(r.rounds); i++ {
			if len(r.catalog.QuestionsFor(r.rounds[i].ID)) > 0 {
				next = i
				break
			}
		}
		if next < 0 {
			s.phase = PhaseGameComplete
			view = RoundView{CurrentRound: r.rounds[s.roundIx], GamePlayers: ranking(s.roster()), GameOver: true}
			r.publish(s, EventGameEnded, view)
			return nil
		}
		s.roundIx = next
		s.posed = make(map[int]bool)
		s.posedOrder = nil
		s.turned = make(map[int]bool)
		s.question = nil
		s.phase = PhaseNotStarted
		view = RoundView{CurrentRound: r.rounds[s.roundIx], GamePlayers: s.roster()}
		r.publish(s, EventNextRound, view)
		return nil
	})
	return view, err
}

// Announce relays a host-driven display cue to every participant.
func (r *Registry) Announce(pin, name string) (Announcement, error) {
	var a Announcement
	if !isAnnouncement(name) {
		return a, ErrUnknownAnnounce
	}
	err := r.mutate(pin, func(s *SessionCtx) error {
		a = Announcement{Phase: s.phase, CurrentRound: r.rounds[s.roundIx], GamePlayers: s.roster()}
		switch name {
		case EventShowRanking:
			a.GamePlayers = ranking(a.GamePlayers)
		case EventShowAnswers:
			if s.phase != PhaseTurnActive && s.reference != nil {
				a.RightAnswer = *s.reference
			}
		}
		r.publish(s, name, a)
		return nil
	})
	return a, err
}

// selectQuestion picks uniformly among the current round's questions that
// have not been posed yet and records the pick.
func (r *Registry) selectQuestion(s *SessionCtx) (catalog.Question, error) {
	round := r.rounds[s.roundIx]
	var candidates []catalog.Question
	for _, q := range r.catalog.QuestionsFor(round.ID) {
		if !s.posed[q.ID] {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return catalog.Question{}, ErrRoundExhausted
	}
	q := candidates[r.intn(len(candidates))]
	s.posed[q.ID] = true
	s.posedOrder = append(s.posedOrder, q)
	s.question = &q
	return q, nil
}

func (r *Registry) endRound(s *SessionCtx) RoundSummary {
	s.resetTurnState()
	s.phase = PhaseRoundComplete
	sum := RoundSummary{
		Pin:            s.Pin,
		RoundEnded:     true,
		CurrentRound:   r.rounds[s.roundIx],
		GamePlayers:    s.roster(),
		PosedQuestions: append([]catalog.Question(nil), s.posedOrder...),
		EndedAt:        r.now(),
	}
	r.publish(s, EventRoundEnded, sum)
	return sum
}

// completeTurnIfAnswered closes the turn once every player has answered.
func (r *Registry) completeTurnIfAnswered(s *SessionCtx) bool {
	for _, p := range s.players {
		if !p.HasAnswered {
			return false
		}
	}
	s.phase = PhaseTurnComplete
	r.publish(s, EventAllAnswered, allAnsweredNotice{RightAnswer: *s.reference, GamePlayers: s.roster()})
	return true
}

func (r *Registry) turnView(s *SessionCtx) TurnView {
	return TurnView{
		CurrentQuestion: *s.question,
		RoundPlayer:     s.turnHolder(),
		CurrentRound:    r.rounds[s.roundIx],
		GamePlayers:     s.roster(),
	}
}

func (s *SessionCtx) beginTurn(playerID int) {
	s.resetTurnState()
	for _, p := range s.players {
		p.IsTurn = p.ID == playerID
	}
	s.turned[playerID] = true
	s.phase = PhaseTurnActive
}

func (s *SessionCtx) resetTurnState() {
	for _, p := range s.players {
		p.IsTurn = false
		p.HasAnswered = false
		p.Answer = ""
	}
	s.reference = nil
}

func (s *SessionCtx) nextTurnHolder() int {
	for _, id := range s.turnOrder {
		if !s.turned[id] {
			return id
		}
	}
	return 0
}
