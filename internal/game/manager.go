package game

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiliankoe/knowme/internal/catalog"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrDuplicateUsername = errors.New("username already taken in this session")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrRoundExhausted    = errors.New("every question of the round has been posed")
	ErrInvalidTurn       = errors.New("action not allowed for this player at this point of the turn")
	ErrInvalidPhase      = errors.New("invalid phase for action")
	ErrAlreadyAnswered   = errors.New("player already answered this turn")
	ErrEmptyPin          = errors.New("pin is required")
	ErrEmptyUsername     = errors.New("username is required")
	ErrEmptyAnswer       = errors.New("answer is required")
	ErrUnknownAnnounce   = errors.New("unknown announcement")
)

// Catalog is the read-only question source the registry plays from.
type Catalog interface {
	RoundsOrdered() []catalog.Round
	QuestionsFor(roundID int) []catalog.Question
}

type SessionCtx struct {
	ID        string
	Pin       string
	CreatedAt time.Time
	CreatorID int

	players   []*Player
	turnOrder []int // player ids, admission order

	phase   Phase
	roundIx int // index into Registry.rounds

	// per round state
	posed      map[int]bool
	posedOrder []catalog.Question
	turned     map[int]bool

	// per turn state
	question  *catalog.Question
	reference *string

	mu sync.Mutex
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*SessionCtx

	catalog  Catalog
	rounds   []catalog.Round
	notifier Notifier
	intn     func(n int) int
	now      func() time.Time
}

type Option func(*Registry)

// WithRandom replaces the uniform source used for question and pin picks.
func WithRandom(intn func(n int) int) Option {
	return func(r *Registry) { r.intn = intn }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(c Catalog, n Notifier, opts ...Option) (*Registry, error) {
	rounds := c.RoundsOrdered()
	if len(rounds) == 0 {
		return nil, errors.New("catalog has no rounds")
	}
	if n == nil {
		n = nopNotifier{}
	}
	r := &Registry{
		sessions: make(map[string]*SessionCtx),
		catalog:  c,
		rounds:   rounds,
		notifier: n,
		intn:     rand.Intn,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Resolve looks a session up by exact pin.
func (r *Registry) Resolve(pin string) (Snapshot, error) {
	s, err := r.get(pin)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.snapshot(s), nil
}

// Admit creates the session on first use of pin, otherwise appends a player.
func (r *Registry) Admit(pin, username string) (Snapshot, Player, error) {
	if pin == "" {
		return Snapshot{}, Player{}, ErrEmptyPin
	}
	if strings.TrimSpace(username) == "" {
		return Snapshot{}, Player{}, ErrEmptyUsername
	}

	r.mu.Lock()
	s := r.sessions[pin]
	if s == nil {
		s = r.newSession(pin)
		r.sessions[pin] = s
		s.mu.Lock()
		r.mu.Unlock()
		defer s.mu.Unlock()
		p := s.addPlayer(username, r.now())
		s.CreatorID = p.ID
		snap := r.snapshot(s)
		r.publish(s, EventGameCreated, snap)
		return snap, *p, nil
	}
	r.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.Username == username {
			return Snapshot{}, Player{}, ErrDuplicateUsername
		}
	}
	p := s.addPlayer(username, r.now())
	snap := r.snapshot(s)
	r.publish(s, EventPlayerJoined, snap)
	return snap, *p, nil
}

// SuggestPin returns a random pin that no live session uses.
func (r *Registry) SuggestPin() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 4
	for attempt := 0; ; attempt++ {
		if attempt > 0 && attempt%32 == 0 {
			n++
		}
		code := r.randomCode(n)
		if r.sessions[code] == nil {
			return code
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) get(pin string) (*SessionCtx, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.sessions[pin]
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// mutate runs fn with the session lock held. Every state transition goes
// through here so transitions on one pin never interleave.
func (r *Registry) mutate(pin string, fn func(s *SessionCtx) error) error {
	s, err := r.get(pin)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

func (r *Registry) newSession(pin string) *SessionCtx {
	return &SessionCtx{
		ID:        uuid.NewString(),
		Pin:       pin,
		CreatedAt: r.now(),
		phase:     PhaseNotStarted,
		roundIx:   0,
		posed:     make(map[int]bool),
		turned:    make(map[int]bool),
	}
}

func (r *Registry) publish(s *SessionCtx, name string, payload any) {
	r.notifier.Publish(Event{Name: name, Pin: s.Pin, Payload: payload, At: r.now()})
}

func (r *Registry) snapshot(s *SessionCtx) Snapshot {
	snap := Snapshot{
		ID:           s.ID,
		Pin:          s.Pin,
		CreatorID:    s.CreatorID,
		Players:      s.roster(),
		CurrentRound: r.rounds[s.roundIx],
		Phase:        s.phase,
		RoundPlayer:  s.turnHolder(),
		CreatedAt:    s.CreatedAt,
	}
	if s.question != nil {
		q := *s.question
		snap.CurrentQuestion = &q
	}
	return snap
}

func (r *Registry) randomCode(n int) string {
	const digits = "0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[r.intn(len(digits))]
	}
	return string(b)
}

func (s *SessionCtx) addPlayer(username string, now time.Time) *Player {
	p := &Player{ID: len(s.players) + 1, Username: username, JoinedAt: now}
	s.players = append(s.players, p)
	s.turnOrder = append(s.turnOrder, p.ID)
	return p
}

func (s *SessionCtx) player(id int) *Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *SessionCtx) turnHolder() int {
	for _, p := range s.players {
		if p.IsTurn {
			return p.ID
		}
	}
	return 0
}

func (s *SessionCtx) roster() []Player {
	out := make([]Player, len(s.players))
	for i, p := range s.players {
		out[i] = *p
	}
	return out
}

// ranking orders players by points, ties broken by admission order.
func ranking(players []Player) []Player {
	out := append([]Player(nil), players...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].ID < out[j].ID
	})
	return out
}
