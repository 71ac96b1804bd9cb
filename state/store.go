package state

import (
	"strings"
	"sync"
)

// ScoreEntry is one line of the run's score log, in award order.
type ScoreEntry struct {
	Source string `json:"source"`
	Points int    `json:"points"`
}

// Snapshot is the complete broadcastable state, serialized as one JSON
// object. Field names are part of the wire protocol with the dashboard page.
type Snapshot struct {
	TeamName           string          `json:"teamName"`
	Points             int             `json:"points"`
	Percent            float64         `json:"percent"`
	LastUploadFilename *string         `json:"lastUploadFilename"`
	HasCode            bool            `json:"hasCode"`
	RemainingSeconds   float64         `json:"remainingSeconds"`
	GameOver           bool            `json:"gameOver"`
	RoomPcts           map[int]float64 `json:"roomPcts"`
	CurrentRoom        int             `json:"currentRoom"`
	ScoreLog           []ScoreEntry    `json:"scoreLog"`
	Battery            *float64        `json:"battery"`
	Subleague          string          `json:"subleague"`
}

// Flag identifies one of the consume-once command flags.
type Flag int

const (
	// FlagNewCode is raised after a successful code upload.
	FlagNewCode Flag = iota
	// FlagRun is raised when the operator presses Run.
	FlagRun
	// FlagRelocate is raised when the operator presses Relocate.
	FlagRelocate
	// FlagEnd is raised when the operator presses End.
	FlagEnd

	flagCount
)

// Store is the shared state between the simulation loop, the WebSocket
// sessions and the broadcaster. Every method takes the lock only for the
// duration of the field access; none performs I/O or blocks, so the
// simulation loop can call into the Store every tick without jitter.
type Store struct {
	mu sync.Mutex

	teamName           string
	points             int
	percent            float64
	lastUploadFilename *string
	remainingSeconds   float64
	gameOver           bool
	roomPcts           map[int]float64
	currentRoom        int
	scoreLog           []ScoreEntry
	battery            *float64
	subleague          string

	flags [flagCount]bool
}

// New returns a Store with pre-run defaults: nothing cleaned, no time on the
// clock, no current room, battery hidden.
func New() *Store {
	return &Store{
		roomPcts:    map[int]float64{},
		currentRoom: -1,
	}
}

// SetTeamName sets the displayed team name.
func (s *Store) SetTeamName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teamName = strings.TrimSpace(name)
}

// SetSubleague sets the subleague shown in the header (e.g. "U14", "U19").
func (s *Store) SetSubleague(subleague string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subleague = strings.TrimSpace(subleague)
}

// SetBattery sets the battery level in percent; nil hides the battery UI for
// subleagues that do not use one.
func (s *Store) SetBattery(battery *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if battery == nil {
		s.battery = nil
		return
	}
	v := *battery
	s.battery = &v
}

// SetRoomStats sets per-room cleaning percentages and the room the robot is
// currently in; currentRoom -1 means no room.
func (s *Store) SetRoomStats(roomPcts map[int]float64, currentRoom int) {
	copied := make(map[int]float64, len(roomPcts))
	for room, pct := range roomPcts {
		copied[room] = pct
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomPcts = copied
	s.currentRoom = currentRoom
}

// UpdateScore sets the score, overall cleaning percentage, remaining run time
// and game-over status in one call, matching the cadence of the simulation
// loop. Negative remaining time is clamped to zero. The score log replaces
// the previous one wholesale; the caller owns ordering.
func (s *Store) UpdateScore(points int, percent, remainingSeconds float64, gameOver bool, scoreLog []ScoreEntry) {
	copied := make([]ScoreEntry, len(scoreLog))
	copy(copied, scoreLog)
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = points
	s.percent = percent
	s.remainingSeconds = remainingSeconds
	s.gameOver = gameOver
	s.scoreLog = copied
}

// SetLastUpload records the filename of a successful code upload and raises
// FlagNewCode in the same critical section.
func (s *Store) SetLastUpload(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := filename
	s.lastUploadFilename = &name
	s.flags[FlagNewCode] = true
}

// Request raises a command flag. Raising an already-raised flag is a no-op:
// repeated commands between two Consume calls coalesce into one observation.
func (s *Store) Request(f Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[f] = true
}

// Consume atomically reads and clears a flag, returning whether it was
// raised. Exactly one caller per flag (the simulation loop) should consume.
func (s *Store) Consume(f Flag) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	raised := s.flags[f]
	s.flags[f] = false
	return raised
}

// Snapshot returns a value copy of the current state, safe to serialize
// without holding the lock. HasCode is derived from the upload filename.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TeamName:         s.teamName,
		Points:           s.points,
		Percent:          s.percent,
		HasCode:          s.lastUploadFilename != nil,
		RemainingSeconds: s.remainingSeconds,
		GameOver:         s.gameOver,
		RoomPcts:         make(map[int]float64, len(s.roomPcts)),
		CurrentRoom:      s.currentRoom,
		ScoreLog:         make([]ScoreEntry, len(s.scoreLog)),
		Subleague:        s.subleague,
	}
	for room, pct := range s.roomPcts {
		snap.RoomPcts[room] = pct
	}
	copy(snap.ScoreLog, s.scoreLog)
	if s.lastUploadFilename != nil {
		name := *s.lastUploadFilename
		snap.LastUploadFilename = &name
	}
	if s.battery != nil {
		battery := *s.battery
		snap.Battery = &battery
	}
	return snap
}
