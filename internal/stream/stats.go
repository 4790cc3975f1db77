package stream

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bryanchriswhite/webcamize/internal/output"
)

// State is the session lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateCleanup
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateCleanup:
		return "cleanup"
	case StateTerminated:
		return "terminated"
	default:
		return "idle"
	}
}

// Stats holds counters written by the loop and read by the status API.
type Stats struct {
	sessionID string
	started   time.Time

	state        atomic.Int32
	captured     atomic.Uint64
	converted    atomic.Uint64
	passthrough  atomic.Uint64
	dropped      atomic.Uint64
	bytesWritten atomic.Uint64
	scaleInits   atomic.Int64
	width        atomic.Int64
	height       atomic.Int64
	format       atomic.Value
	camera       atomic.Value
	sink         atomic.Value
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	SessionID    string    `json:"session_id"`
	State        string    `json:"state"`
	StartedAt    time.Time `json:"started_at"`
	Uptime       string    `json:"uptime"`
	Camera       string    `json:"camera,omitempty"`
	Sink         string    `json:"sink,omitempty"`
	Format       string    `json:"format,omitempty"`
	Width        int64     `json:"width"`
	Height       int64     `json:"height"`
	Captured     uint64    `json:"frames_captured"`
	Converted    uint64    `json:"frames_converted"`
	Passthrough  uint64    `json:"frames_passthrough"`
	Dropped      uint64    `json:"frames_dropped"`
	BytesWritten uint64    `json:"bytes_written"`
	ScaleInits   int64     `json:"scale_inits"`
}

// NewStats creates counters for a new session.
func NewStats() *Stats {
	return &Stats{
		sessionID: uuid.NewString(),
		started:   time.Now(),
	}
}

// SessionID returns the unique id of this session
func (s *Stats) SessionID() string {
	return s.sessionID
}

// State returns the current lifecycle phase
func (s *Stats) State() State {
	return State(s.state.Load())
}

func (s *Stats) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Stats) setNames(camera, sink string) {
	s.camera.Store(camera)
	s.sink.Store(sink)
}

func (s *Stats) written(f output.Frame) {
	s.bytesWritten.Add(uint64(len(f.Data)))
	s.width.Store(int64(f.Width))
	s.height.Store(int64(f.Height))
	s.format.Store(f.Format.String())
}

// Snapshot copies the current counters
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		SessionID:    s.sessionID,
		State:        State(s.state.Load()).String(),
		StartedAt:    s.started,
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Camera:       loadString(&s.camera),
		Sink:         loadString(&s.sink),
		Format:       loadString(&s.format),
		Width:        s.width.Load(),
		Height:       s.height.Load(),
		Captured:     s.captured.Load(),
		Converted:    s.converted.Load(),
		Passthrough:  s.passthrough.Load(),
		Dropped:      s.dropped.Load(),
		BytesWritten: s.bytesWritten.Load(),
		ScaleInits:   s.scaleInits.Load(),
	}
}

func loadString(v *atomic.Value) string {
	s, _ := v.Load().(string)
	return s
}
