package game

type Verdict int

const (
	Incorrect Verdict = iota
	Correct
)

func (v Verdict) String() string {
	if v == Correct {
		return "correct"
	}
	return "incorrect"
}

// PointsPerCorrectGuess is the fixed weight of a correct guess.
const PointsPerCorrectGuess = 1

// evaluateGuess compares guess with the session's reference answer byte for
// byte and credits p on a match. Points are never taken away.
func evaluateGuess(s *SessionCtx, p *Player, guess string) Verdict {
	if s.reference == nil || guess != *s.reference {
		return Incorrect
	}
	p.Points += PointsPerCorrectGuess
	return Correct
}
