package engine

import (
	dragon "github.com/dylhunn/dragontoothmg"
)

type SearchResult uint8

const (
	Undetermined SearchResult = iota
	Winnable
	Unwinnable
)

func (r SearchResult) String() string {
	switch r {
	case Winnable:
		return "winnable"
	case Unwinnable:
		return "unwinnable"
	}
	return "undetermined"
}

type SearchMode uint8

const (
	FullMode SearchMode = iota
	QuickMode
)

type SearchTarget uint8

const (
	AnyTarget SearchTarget = iota
	ShortestTarget
)

// SearchPhase records which pipeline stage produced (or is producing) the
// verdict.
type SearchPhase uint8

const (
	PhasePreStatic SearchPhase = iota
	PhaseStatic
	PhasePostStatic
)

const MaxVariationLength = 2000

const defaultGlobalLimit = 500000

// Search stores the state of one helpmate analysis: the intended winner, the
// move sequence found so far, depth bookkeeping and the node budgets. A
// Search (with its transposition table and saturation system) must not be
// shared between concurrent analyses.
type Search struct {
	winner Color

	sequence  [MaxVariationLength]dragon.Move
	prefixLen int

	depth          int
	maxSearchDepth int
	mateLen        int

	result      SearchResult
	interrupted bool
	phase       SearchPhase

	counter      uint64
	totalCounter uint64
	localBudget  uint64
	globalLimit  uint64

	tt     TransTable
	system System
}

func NewSearch(intendedWinner Color) *Search {
	return &Search{
		winner:      intendedWinner,
		globalLimit: defaultGlobalLimit,
	}
}

// Init resets the search for a fresh top-level analysis.
func (s *Search) Init() {
	s.totalCounter = 0
	s.counter = 0
	s.prefixLen = 0
	s.depth = 0
	s.mateLen = 0
	s.result = Undetermined
	s.interrupted = false
	s.phase = PhasePreStatic
}

// Set starts one search iteration of the given relative depth; its node
// budget is maxDepth times localNodesLimit. Counters roll into the cumulative
// total.
func (s *Search) Set(maxDepth int, localNodesLimit uint64) {
	s.depth = s.prefixLen
	s.maxSearchDepth = s.prefixLen + maxDepth
	s.mateLen = 0
	s.result = Undetermined
	s.interrupted = false
	s.localBudget = uint64(maxDepth) * localNodesLimit
	s.totalCounter += s.counter
	s.counter = 0
}

func (s *Search) SetLimit(nodesLimit uint64) {
	s.globalLimit = nodesLimit
}

func (s *Search) SetWinner(intendedWinner Color) {
	s.winner = intendedWinner
}

func (s *Search) Winner() Color {
	return s.winner
}

func (s *Search) ActualDepth() int {
	return s.depth
}

func (s *Search) MaxDepth() int {
	return s.maxSearchDepth
}

// AnnotateMove records m at the current ply of the candidate sequence.
func (s *Search) AnnotateMove(m dragon.Move) {
	if s.depth < MaxVariationLength {
		s.sequence[s.depth] = m
	}
}

func (s *Search) Step() {
	s.counter++
	s.depth++
}

func (s *Search) UndoStep() {
	s.depth--
}

// PushForced pins a move at the front of the sequence; subsequent Set calls
// keep searching below it. Used for forced lines and for per-move iterative
// deepening.
func (s *Search) PushForced(m dragon.Move) {
	if s.prefixLen < MaxVariationLength {
		s.sequence[s.prefixLen] = m
	}
	s.prefixLen++
	s.depth = s.prefixLen
}

func (s *Search) PopForced() {
	s.prefixLen--
	s.depth = s.prefixLen
}

func (s *Search) SetWinnable() {
	s.result = Winnable
	s.mateLen = s.depth
}

func (s *Search) SetUnwinnable() {
	s.result = Unwinnable
}

func (s *Search) setUndetermined() {
	s.result = Undetermined
}

func (s *Search) Interrupt() {
	s.interrupted = true
}

func (s *Search) IsInterrupted() bool {
	return s.interrupted
}

func (s *Search) IsLocalLimitReached() bool {
	return s.counter > s.localBudget
}

func (s *Search) IsLimitReached() bool {
	return s.totalCounter > s.globalLimit
}

func (s *Search) Result() SearchResult {
	return s.result
}

func (s *Search) GetLimit() uint64 {
	return s.globalLimit
}

// Nodes returns the positions expanded by the whole analysis so far.
func (s *Search) Nodes() uint64 {
	return s.totalCounter + s.counter
}

func (s *Search) SetPhase(phase SearchPhase) {
	s.phase = phase
}

func (s *Search) Phase() SearchPhase {
	return s.phase
}

// MateSequence returns the certified helpmate when the result is Winnable.
func (s *Search) MateSequence() []dragon.Move {
	n := Min(s.mateLen, MaxVariationLength)
	return s.sequence[:n]
}
