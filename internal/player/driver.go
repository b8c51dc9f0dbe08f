package player

import (
	"errors"
	"sync"

	"github.com/mikey-austin/media_session/pkg/msp"
)

// Driver executes playback actions.
type Driver interface {
	Play(url string, positionMS int64) error
	Pause() error
	Resume() error
	Stop() error
	Seek(positionMS int64) error
}

// Events receives notifications a Driver raises while a stream plays. Nil
// fields are skipped.
type Events struct {
	Metadata    func(Metadata)
	EndOfStream func()
	// Focus reports the audio output being taken (false) or handed back (true).
	Focus func(gained bool)
	Cues  func(cues []msp.Cue, presentationTimeUS int64)
}

// EventSource is implemented by drivers that report stream events. NewLocal
// registers itself with such drivers.
type EventSource interface {
	SetEvents(events Events)
}

// ErrNotPlaying is returned for transport actions without a loaded stream.
var ErrNotPlaying = errors.New("not playing")

// NullDriver tracks playback state without producing audio.
type NullDriver struct {
	mu         sync.Mutex
	url        string
	positionMS int64
	paused     bool
}

// Play loads url at positionMS.
func (d *NullDriver) Play(url string, positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
	d.positionMS = positionMS
	d.paused = false
	return nil
}

// Pause pauses the loaded stream.
func (d *NullDriver) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.url == "" {
		return ErrNotPlaying
	}
	d.paused = true
	return nil
}

// Resume resumes the loaded stream.
func (d *NullDriver) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.url == "" {
		return ErrNotPlaying
	}
	d.paused = false
	return nil
}

// Stop unloads the stream.
func (d *NullDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = ""
	d.positionMS = 0
	d.paused = false
	return nil
}

// Seek moves the play position.
func (d *NullDriver) Seek(positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.url == "" {
		return ErrNotPlaying
	}
	d.positionMS = positionMS
	return nil
}

// Loaded returns the current url, position and paused flag.
func (d *NullDriver) Loaded() (string, int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, d.positionMS, d.paused
}
