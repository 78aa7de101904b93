package game

import (
	"errors"
	"fmt"
	"io"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/wara2/li5a/internal/deck"
	"github.com/wara2/li5a/internal/randutil"
)

// LosingScore is the cumulative score at which a team loses the game.
const LosingScore = 101

// Phase is a state of the session lifecycle.
type Phase int

const (
	PhaseForming Phase = iota
	PhaseDealing
	PhaseGifting
	PhasePlaying
	PhaseRoundSettled
	PhaseGameOver
)

// String returns the string representation of a phase
func (p Phase) String() string {
	switch p {
	case PhaseForming:
		return "forming"
	case PhaseDealing:
		return "dealing"
	case PhaseGifting:
		return "gifting"
	case PhasePlaying:
		return "playing"
	case PhaseRoundSettled:
		return "round_settled"
	case PhaseGameOver:
		return "game_over"
	default:
		return "?"
	}
}

// TimeoutPolicy controls what happens when a human decision times out.
type TimeoutPolicy int

const (
	// TimeoutAutoplay plays a random legal move (or gifts a random
	// selection) on the player's behalf.
	TimeoutAutoplay TimeoutPolicy = iota
	// TimeoutAbort ends the game.
	TimeoutAbort
)

// AIFactory builds a strategy agent for an auto-filled seat, returning
// the bot's display name alongside the agent.
type AIFactory func(seat Seat, rng *rand.Rand) (string, Agent)

// Config carries per-session settings supplied at creation time.
type Config struct {
	BoardVisible  bool
	MoveTimeout   time.Duration
	TimeoutPolicy TimeoutPolicy
	Seed          int64
	NewAI         AIFactory
	Clock         quartz.Clock
	Logger        *log.Logger
}

// Session is the aggregate root: it owns the four players, the current
// round, the cumulative team scores and the phase machine. Each session
// is an independent unit of concurrency; one goroutine drives its round
// loop, and exactly one await point (the current decision) exists at a
// time. All external operations are safe for concurrent use.
type Session struct {
	id     string
	cfg    Config
	logger *log.Logger
	clock  quartz.Clock
	bus    *EventBus

	mu           sync.Mutex
	rng          *rand.Rand
	phase        Phase
	players      [4]*Player
	scores       [2]int
	round        *Round
	roundNum     int
	boardVisible bool
	aborted      bool
	abortReason  string
	lastActivity time.Time

	done     chan struct{} // closed on teardown, releases blocked agents
	finished chan struct{} // closed when the round loop exits
	endOnce  sync.Once
}

// NewSession creates a session in the forming phase.
func NewSession(id string, cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.MoveTimeout <= 0 {
		cfg.MoveTimeout = 60 * time.Second
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Session{
		id:           id,
		cfg:          cfg,
		logger:       cfg.Logger.WithPrefix("session").With("id", id),
		clock:        cfg.Clock,
		bus:          NewEventBus(),
		rng:          randutil.New(cfg.Seed),
		phase:        PhaseForming,
		boardVisible: cfg.BoardVisible,
		lastActivity: time.Now(),
		done:         make(chan struct{}),
		finished:     make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Bus returns the session's event bus for subscription.
func (s *Session) Bus() *EventBus { return s.bus }

// Finished is closed once the session has fully terminated.
func (s *Session) Finished() <-chan struct{} { return s.finished }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Scores returns the cumulative team scores.
func (s *Session) Scores() (teamA, teamB int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[TeamA], s.scores[TeamB]
}

// Players returns a snapshot of the seated players.
func (s *Session) Players() []PlayerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]PlayerInfo, 0, 4)
	for _, p := range s.players {
		if p != nil {
			infos = append(infos, PlayerInfo{Seat: p.Seat, Kind: p.Kind, Name: p.Name})
		}
	}
	return infos
}

// BoardVisible reports whether the trick board may be shown to spectators.
func (s *Session) BoardVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boardVisible
}

// ToggleBoardVisibility flips the board visibility flag and returns the
// new value.
func (s *Session) ToggleBoardVisibility() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boardVisible = !s.boardVisible
	return s.boardVisible
}

// PublicState is a spectator-safe snapshot of a session: no hand
// contents, only what is on the table.
type PublicState struct {
	ID           string       `json:"id"`
	Phase        string       `json:"phase"`
	Round        int          `json:"round"`
	Players      []PlayerInfo `json:"players"`
	Scores       [2]int       `json:"scores"`
	RoundPoints  [2]int       `json:"round_points"`
	Trick        Trick        `json:"trick"`
	TricksPlayed int          `json:"tricks_played"`
	BoardVisible bool         `json:"board_visible"`
}

// PublicState returns the current spectator-safe snapshot.
func (s *Session) PublicState() PublicState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := PublicState{
		ID:           s.id,
		Phase:        s.phase.String(),
		Round:        s.roundNum,
		Scores:       s.scores,
		BoardVisible: s.boardVisible,
	}
	for _, p := range s.players {
		if p != nil {
			state.Players = append(state.Players, PlayerInfo{Seat: p.Seat, Kind: p.Kind, Name: p.Name})
		}
	}
	if s.round != nil {
		a, b := s.round.TeamPoints()
		state.RoundPoints = [2]int{a, b}
		state.Trick = s.round.CurrentTrick()
		state.TricksPlayed = s.round.TricksPlayed()
	}
	return state
}

// LastActivity returns the time of the last accepted external operation.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Join seats a participant at a uniformly random free seat.
func (s *Session) Join(ref, name string) (Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseForming {
		return 0, ErrAlreadyStarted
	}
	for _, p := range s.players {
		if p != nil && p.Ref == ref {
			return p.Seat, nil
		}
	}

	var free []Seat
	for _, seat := range Seats {
		if s.players[seat] == nil {
			free = append(free, seat)
		}
	}
	if len(free) == 0 {
		return 0, ErrSessionFull
	}

	seat := free[s.rng.IntN(len(free))]
	human := NewHumanAgent(seat, s.logger, s.clock, s.cfg.MoveTimeout, s.done)
	s.players[seat] = &Player{
		Seat:  seat,
		Kind:  KindHuman,
		Name:  name,
		Ref:   ref,
		Agent: human,
		human: human,
	}
	s.touchLocked()
	s.logger.Info("player joined", "seat", seat, "name", name)
	return seat, nil
}

// Leave removes a participant before the game starts.
func (s *Session) Leave(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseForming {
		return ErrAlreadyStarted
	}
	for i, p := range s.players {
		if p != nil && p.Ref == ref {
			s.players[i] = nil
			s.touchLocked()
			s.logger.Info("player left", "seat", p.Seat, "name", p.Name)
			return nil
		}
	}
	return ErrNotJoined
}

// Start fills empty seats with AI players and launches the round loop.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.phase != PhaseForming {
		s.mu.Unlock()
		return ErrWrongPhase
	}
	if s.cfg.NewAI == nil {
		for _, p := range s.players {
			if p == nil {
				s.mu.Unlock()
				return ErrNotEnoughPlayers
			}
		}
	}
	for _, seat := range Seats {
		if s.players[seat] == nil {
			name, agent := s.cfg.NewAI(seat, s.rng)
			s.players[seat] = &Player{Seat: seat, Kind: KindAI, Name: name, Agent: agent}
			s.logger.Info("seat filled by bot", "seat", seat, "name", name)
		}
	}
	// Leave the forming phase before releasing the lock so a second
	// start or a late join cannot race the round loop's first
	// transition.
	s.phase = PhaseDealing
	s.touchLocked()
	s.mu.Unlock()

	s.bus.Publish(PhaseChangedEvent{From: PhaseForming, To: PhaseDealing, stamped: stamp()})
	go s.run()
	return nil
}

// SubmitMove delivers a human player's card for the trick in progress.
// The submission is validated before it is routed: wrong phase, wrong
// seat and rule violations are rejected without touching game state.
func (s *Session) SubmitMove(seat Seat, card deck.Card) error {
	s.mu.Lock()
	if s.phase != PhasePlaying {
		s.mu.Unlock()
		return ErrWrongPhase
	}
	p := s.players[seat]
	if p == nil || p.Kind != KindHuman {
		s.mu.Unlock()
		return ErrOutOfTurn
	}
	if s.round.Turn() != seat {
		s.mu.Unlock()
		return ErrOutOfTurn
	}
	if !s.round.Holds(seat, card) {
		s.mu.Unlock()
		s.rejectMove(seat, fmt.Sprintf("%s is not in hand", card))
		return fmt.Errorf("%w: %s not in hand", ErrIllegalMove, card)
	}
	if !containsCard(s.round.LegalMoves(seat), card) {
		led, _ := s.round.CurrentTrick().LedSuit()
		s.mu.Unlock()
		s.rejectMove(seat, fmt.Sprintf("must follow %s", led))
		return fmt.Errorf("%w: must follow %s", ErrIllegalMove, led)
	}
	human := p.human
	s.touchLocked()
	s.mu.Unlock()

	return human.submitCard(card)
}

// SubmitGift delivers a human player's gift selection during gifting.
func (s *Session) SubmitGift(seat Seat, cards []deck.Card) error {
	s.mu.Lock()
	if s.phase != PhaseGifting {
		s.mu.Unlock()
		return ErrWrongPhase
	}
	p := s.players[seat]
	if p == nil || p.Kind != KindHuman {
		s.mu.Unlock()
		return ErrOutOfTurn
	}
	if !s.round.GiftPending(seat) {
		s.mu.Unlock()
		return ErrOutOfTurn
	}
	if err := s.round.ValidateGift(seat, cards); err != nil {
		s.mu.Unlock()
		s.rejectMove(seat, err.Error())
		return err
	}
	human := p.human
	s.touchLocked()
	s.mu.Unlock()

	return human.submitGift(cards)
}

// End terminates the session from any non-terminal state. A game ended
// this way reports an aborted result rather than a losing team.
func (s *Session) End() {
	s.endWithReason("ended by command")
}

func (s *Session) endWithReason(reason string) {
	s.mu.Lock()
	if s.phase == PhaseGameOver {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	if s.abortReason == "" {
		s.abortReason = reason
	}
	started := s.phase != PhaseForming
	s.mu.Unlock()

	s.endOnce.Do(func() { close(s.done) })

	// A forming session has no round loop to unwind; finish it here.
	if !started {
		s.finishAborted()
		close(s.finished)
	}
}

// rejectMove logs and announces an illegal attempt. Called without the
// session lock held.
func (s *Session) rejectMove(seat Seat, reason string) {
	s.logger.Warn("illegal attempt", "seat", seat, "reason", reason)
	s.bus.Publish(IllegalAttemptEvent{Seat: seat, Reason: reason, stamped: stamp()})
}

func (s *Session) touchLocked() {
	s.lastActivity = time.Now()
}

func (s *Session) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *Session) setPhase(to Phase) {
	s.mu.Lock()
	from := s.phase
	s.phase = to
	s.mu.Unlock()
	if from != to {
		s.logger.Debug("phase change", "from", from, "to", to)
		s.bus.Publish(PhaseChangedEvent{From: from, To: to, stamped: stamp()})
	}
}

// run drives the session through rounds until the game ends.
func (s *Session) run() {
	defer close(s.finished)

	for {
		over, err := s.playRound()
		switch {
		case errors.Is(err, ErrSessionEnded):
			s.finishAborted()
			return
		case err != nil:
			// Engine bug: abort the session and surface diagnostics.
			s.logger.Error("fatal engine error", "error", err)
			s.mu.Lock()
			s.aborted = true
			s.abortReason = err.Error()
			s.mu.Unlock()
			s.endOnce.Do(func() { close(s.done) })
			s.finishAborted()
			return
		case over:
			return
		}
	}
}

// playRound runs one full deal/gift/play/settle cycle. It returns true
// when the game is over.
func (s *Session) playRound() (bool, error) {
	if s.isAborted() {
		return false, ErrSessionEnded
	}

	// DEALING: fresh deck, full shuffle-and-deal.
	s.setPhase(PhaseDealing)
	s.mu.Lock()
	s.roundNum++
	d := deck.New(s.rng)
	d.Shuffle()
	hands, err := d.DealHands()
	if err != nil {
		s.mu.Unlock()
		return false, &InvariantError{Op: "deal", Detail: "deck broken", Err: err}
	}
	round, err := NewRound(hands)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.round = round
	num := s.roundNum
	s.mu.Unlock()

	s.logger.Info("round dealt", "round", num)
	for _, seat := range Seats {
		s.bus.Publish(NewHandDealtEvent(seat, round.Hand(seat)))
	}

	// GIFTING: collect all four selections, then exchange atomically.
	s.setPhase(PhaseGifting)
	if err := s.collectGifts(); err != nil {
		return false, err
	}
	s.mu.Lock()
	if err := s.round.ApplyGifts(); err != nil {
		s.mu.Unlock()
		return false, err
	}
	leader := Seat(s.rng.IntN(4))
	s.round.SetLeader(leader)
	s.mu.Unlock()

	s.logger.Info("gifts exchanged", "leader", leader)
	for _, seat := range Seats {
		s.bus.Publish(NewHandDealtEvent(seat, round.Hand(seat)))
	}

	// PLAYING: exactly 13 tricks.
	s.setPhase(PhasePlaying)
	if err := s.playTricks(); err != nil {
		return false, err
	}

	// ROUND_SETTLED: fold points into cumulative scores.
	s.setPhase(PhaseRoundSettled)
	s.mu.Lock()
	a, b := s.round.TeamPoints()
	s.scores[TeamA] += a
	s.scores[TeamB] += b
	roundPoints := [2]int{a, b}
	totals := s.scores
	s.mu.Unlock()

	s.logger.Info("round settled", "round", num, "teamA", totals[TeamA], "teamB", totals[TeamB])
	s.bus.Publish(NewRoundSettledEvent(roundPoints, totals))

	if totals[TeamA] >= LosingScore || totals[TeamB] >= LosingScore {
		s.finishByScore(totals)
		return true, nil
	}
	return false, nil
}

// collectGifts asks each seat in turn for its three-card selection.
// Sequential collection still has simultaneous-exchange semantics: no
// hand changes until ApplyGifts, and human submissions buffer, so seats
// may answer in any order.
func (s *Session) collectGifts() error {
	for _, seat := range Seats {
		for {
			if s.isAborted() {
				return ErrSessionEnded
			}
			s.mu.Lock()
			if !s.round.GiftPending(seat) {
				s.mu.Unlock()
				break
			}
			p := s.players[seat]
			view := s.viewLocked(seat)
			s.mu.Unlock()

			if p.human != nil {
				p.human.beginGiftPrompt()
			}
			s.bus.Publish(GiftRequestedEvent{Seat: seat, Recipient: seat.GiftRecipient(), stamped: stamp()})
			cards, err := p.Agent.ChooseGift(view)
			if errors.Is(err, ErrDecisionTimeout) {
				cards, err = s.autoGift(seat)
				if err != nil {
					return err
				}
			}
			if err != nil {
				return err
			}

			s.mu.Lock()
			applyErr := s.round.SetGift(seat, cards)
			s.mu.Unlock()
			if applyErr == nil {
				break
			}
			if p.Kind == KindAI {
				return invariantf("gift", "bot %s produced invalid gift: %v", seat, applyErr)
			}
			s.rejectMove(seat, applyErr.Error())
		}
	}
	return nil
}

// autoGift applies the timeout policy during gifting.
func (s *Session) autoGift(seat Seat) ([]deck.Card, error) {
	if s.cfg.TimeoutPolicy == TimeoutAbort {
		s.endWithReason(fmt.Sprintf("seat %s timed out", seat))
		return nil, ErrSessionEnded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hand := s.round.Hand(seat)
	perm := s.rng.Perm(len(hand))
	cards := []deck.Card{hand[perm[0]], hand[perm[1]], hand[perm[2]]}
	s.logger.Info("auto-gifting after timeout", "seat", seat)
	return cards, nil
}

// playTricks runs the trick loop until the round completes.
func (s *Session) playTricks() error {
	for {
		if s.isAborted() {
			return ErrSessionEnded
		}
		s.mu.Lock()
		if s.round.Complete() {
			s.mu.Unlock()
			return nil
		}
		seat := s.round.Turn()
		legal := s.round.LegalMoves(seat)
		p := s.players[seat]
		view := s.viewLocked(seat)
		trickNum := s.round.TricksPlayed() + 1
		s.mu.Unlock()

		if len(legal) == 0 {
			return invariantf("play", "empty legal set for seat %s", seat)
		}

		if p.human != nil {
			p.human.beginMovePrompt()
		}
		s.bus.Publish(NewMoveRequestedEvent(seat, legal))
		card, err := p.Agent.ChooseCard(view, legal)
		if errors.Is(err, ErrDecisionTimeout) {
			if s.cfg.TimeoutPolicy == TimeoutAbort {
				s.endWithReason(fmt.Sprintf("seat %s timed out", seat))
				return ErrSessionEnded
			}
			s.mu.Lock()
			card = legal[s.rng.IntN(len(legal))]
			s.mu.Unlock()
			s.logger.Info("auto-playing after timeout", "seat", seat, "card", card)
		} else if err != nil {
			return err
		}

		if p.Kind == KindAI && !containsCard(legal, card) {
			// Strategies validate before returning; reaching this means
			// the engine and the strategy disagree about legality.
			return invariantf("play", "bot %s chose %s outside the legal set", seat, card)
		}

		s.mu.Lock()
		result, playErr := s.round.PlayCard(seat, card)
		var trick Trick
		if playErr == nil {
			if result != nil {
				trick = result.Trick
			} else {
				trick = s.round.CurrentTrick()
			}
		}
		s.mu.Unlock()

		if playErr != nil {
			if IsInvariantViolation(playErr) {
				return playErr
			}
			if p.Kind == KindAI {
				return invariantf("play", "bot %s move rejected: %v", seat, playErr)
			}
			// Human rule violation: reject and re-prompt the same seat.
			s.rejectMove(seat, playErr.Error())
			continue
		}

		s.bus.Publish(NewCardPlayedEvent(seat, card, trick))
		if result != nil {
			s.logger.Debug("trick complete",
				"trick", trickNum,
				"winner", result.Winner,
				"points", result.Points)
			s.bus.Publish(NewTrickCompletedEvent(trickNum, *result))
		}
	}
}

// viewLocked builds the read-only snapshot for a seat. Caller holds mu.
func (s *Session) viewLocked(seat Seat) TableView {
	a, b := 0, 0
	if s.round != nil {
		a, b = s.round.TeamPoints()
	}
	view := TableView{
		Seat:          seat,
		RoundPoints:   [2]int{a, b},
		TotalScores:   s.scores,
		GiftRecipient: seat.GiftRecipient(),
	}
	if s.round != nil {
		view.Hand = s.round.Hand(seat)
		view.Trick = s.round.CurrentTrick()
		view.TricksPlayed = s.round.TricksPlayed()
		view.SeenCards = s.round.SeenCards()
	}
	return view
}

// finishByScore declares the score-based result. The team that reached
// 101 first loses; both teams crossing in the same settlement is a draw.
func (s *Session) finishByScore(totals [2]int) {
	s.setPhase(PhaseGameOver)

	event := GameOverEvent{TotalScores: totals, stamped: stamp()}
	aLost := totals[TeamA] >= LosingScore
	bLost := totals[TeamB] >= LosingScore
	switch {
	case aLost && bLost:
		event.Draw = true
		s.logger.Info("game over: draw", "teamA", totals[TeamA], "teamB", totals[TeamB])
	case aLost:
		t := TeamA
		event.LosingTeam = &t
		s.logger.Info("game over", "loser", t, "teamA", totals[TeamA], "teamB", totals[TeamB])
	default:
		t := TeamB
		event.LosingTeam = &t
		s.logger.Info("game over", "loser", t, "teamA", totals[TeamA], "teamB", totals[TeamB])
	}
	s.bus.Publish(event)
}

// finishAborted declares an aborted result.
func (s *Session) finishAborted() {
	s.mu.Lock()
	reason := s.abortReason
	totals := s.scores
	s.mu.Unlock()

	s.setPhase(PhaseGameOver)
	s.logger.Info("game aborted", "reason", reason)
	s.bus.Publish(GameOverEvent{
		Aborted:     true,
		Reason:      reason,
		TotalScores: totals,
		stamped:     stamp(),
	})
}
