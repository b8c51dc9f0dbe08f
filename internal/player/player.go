// Package player is the local playback capability driven by a media session.
package player

import (
	"errors"
	"sync"

	"github.com/mikey-austin/media_session/pkg/msp"
	"go.uber.org/zap"
)

// Config is fixed at construction.
type Config struct {
	// HandleAudioFocus pauses playback while another application holds the
	// audio output and resumes it when focus returns.
	HandleAudioFocus bool
}

// Status is the playback status.
type Status string

// Playback statuses.
const (
	StatusStopped Status = "stopped"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// ErrQueueEmpty is returned by Play when nothing is queued.
var ErrQueueEmpty = errors.New("queue empty")

// Snapshot describes the player state.
type Snapshot struct {
	Status     Status         `json:"status"`
	Shuffle    bool           `json:"shuffle"`
	PositionMS int64          `json:"positionMs"`
	Current    *msp.MediaItem `json:"current,omitempty"`
	Queue      QueueState     `json:"queue"`
	Metadata   string         `json:"metadata,omitempty"`
}

// Local plays queued items through a Driver.
type Local struct {
	log    *zap.Logger
	config Config
	driver Driver
	queue  *Queue

	mu          sync.Mutex
	status      Status
	shuffle     bool
	positionMS  int64
	focusPaused bool
	metadata    string
	onCues      func(msp.CueGroup)
}

// NewLocal creates a stopped player.
func NewLocal(log *zap.Logger, cfg Config, driver Driver) *Local {
	if log == nil {
		log = zap.NewNop()
	}
	if driver == nil {
		driver = &NullDriver{}
	}
	p := &Local{log: log, config: cfg, driver: driver, queue: &Queue{}, status: StatusStopped}
	if src, ok := driver.(EventSource); ok {
		src.SetEvents(Events{
			Metadata:    p.HandleMetadata,
			EndOfStream: p.handleEndOfStream,
			Focus:       p.handleFocus,
			Cues:        p.HandleCues,
		})
	}
	return p
}

// ShuffleEnabled reports the shuffle flag.
func (p *Local) ShuffleEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shuffle
}

// SetShuffleEnabled sets the shuffle flag and reorders upcoming entries.
func (p *Local) SetShuffleEnabled(enabled bool) {
	p.mu.Lock()
	p.shuffle = enabled
	p.mu.Unlock()
	p.queue.SetShuffle(enabled)
	p.log.Debug("shuffle changed", zap.Bool("enabled", enabled))
}

// Enqueue appends playable items to the queue. Items without a source are skipped.
func (p *Local) Enqueue(items []msp.MediaItem) int {
	playable := make([]msp.MediaItem, 0, len(items))
	for _, item := range items {
		if item.Source == nil || item.Source.URL == "" {
			continue
		}
		playable = append(playable, item)
	}
	if len(playable) > 0 {
		p.queue.Add(playable)
	}
	return len(playable)
}

// Play resumes a paused stream or starts the current queue entry.
func (p *Local) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == StatusPaused {
		if err := p.driver.Resume(); err != nil {
			return err
		}
		p.status = StatusPlaying
		p.focusPaused = false
		return nil
	}
	item, ok := p.queue.Current()
	if !ok {
		return ErrQueueEmpty
	}
	if err := p.driver.Play(item.Source.URL, 0); err != nil {
		return err
	}
	p.status = StatusPlaying
	p.positionMS = 0
	p.log.Info("playing", zap.String("item", item.ID), zap.String("title", item.Title))
	return nil
}

// Next starts the following queue entry.
func (p *Local) Next() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, ok := p.queue.Next()
	if !ok {
		_ = p.driver.Stop()
		p.status = StatusStopped
		return ErrQueueEmpty
	}
	if err := p.driver.Play(item.Source.URL, 0); err != nil {
		return err
	}
	p.status = StatusPlaying
	p.positionMS = 0
	return nil
}

// Pause pauses playback.
func (p *Local) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusPlaying {
		return ErrNotPlaying
	}
	if err := p.driver.Pause(); err != nil {
		return err
	}
	p.status = StatusPaused
	return nil
}

// Seek moves the play position of the current stream.
func (p *Local) Seek(positionMS int64) error {
	if positionMS < 0 {
		positionMS = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == StatusStopped {
		return ErrNotPlaying
	}
	if err := p.driver.Seek(positionMS); err != nil {
		return err
	}
	p.positionMS = positionMS
	return nil
}

// FocusLost is called when another application takes the audio output.
func (p *Local) FocusLost() {
	if !p.config.HandleAudioFocus {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusPlaying {
		return
	}
	if err := p.driver.Pause(); err != nil {
		p.log.Warn("pause on focus loss failed", zap.Error(err))
		return
	}
	p.status = StatusPaused
	p.focusPaused = true
}

// FocusGained is called when the audio output is available again.
func (p *Local) FocusGained() {
	if !p.config.HandleAudioFocus {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.focusPaused {
		return
	}
	p.focusPaused = false
	if err := p.driver.Resume(); err != nil {
		p.log.Warn("resume on focus gain failed", zap.Error(err))
		return
	}
	p.status = StatusPlaying
}

func (p *Local) handleFocus(gained bool) {
	if gained {
		p.FocusGained()
		return
	}
	p.FocusLost()
}

// handleEndOfStream advances to the next queue entry when a stream finishes.
func (p *Local) handleEndOfStream() {
	p.mu.Lock()
	playing := p.status == StatusPlaying
	p.mu.Unlock()
	if !playing {
		return
	}
	if err := p.Next(); err != nil {
		if errors.Is(err, ErrQueueEmpty) {
			p.log.Info("queue finished")
			return
		}
		p.log.Warn("advance failed", zap.Error(err))
	}
}

// HandleMetadata records a driver metadata event.
func (p *Local) HandleMetadata(m Metadata) {
	desc := Describe(m)
	p.mu.Lock()
	p.metadata = desc
	p.mu.Unlock()
	p.log.Debug("stream metadata", zap.String("metadata", desc))
}

// OnCues registers the receiver of the active cue group.
func (p *Local) OnCues(fn func(msp.CueGroup)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCues = fn
}

// HandleCues publishes the cues active at presentationTimeUS.
func (p *Local) HandleCues(cues []msp.Cue, presentationTimeUS int64) {
	p.mu.Lock()
	fn := p.onCues
	p.mu.Unlock()
	if fn != nil {
		fn(msp.NewCueGroup(cues, presentationTimeUS))
	}
}

// Queue returns the play queue.
func (p *Local) Queue() *Queue {
	return p.queue
}

// Snapshot returns the current player state.
func (p *Local) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		Status:     p.status,
		Shuffle:    p.shuffle,
		PositionMS: p.positionMS,
		Queue:      p.queue.Summary(),
		Metadata:   p.metadata,
	}
	if p.status != StatusStopped {
		if item, ok := p.queue.Current(); ok {
			snap.Current = &item
		}
	}
	return snap
}
