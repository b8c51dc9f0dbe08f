//go:build !gstreamer

package player

import "errors"

var errNoGStreamer = errors.New("gstreamer build tag not enabled")

// GStreamerDriver is a stub when the gstreamer tag is not enabled.
type GStreamerDriver struct{}

// NewGStreamerDriver returns an error when the gstreamer build tag is missing.
func NewGStreamerDriver(pipeline string, device string) (*GStreamerDriver, error) {
	return nil, errNoGStreamer
}

// SetEvents does nothing without GStreamer.
func (d *GStreamerDriver) SetEvents(events Events) {}

func (d *GStreamerDriver) Play(url string, positionMS int64) error { return errNoGStreamer }
func (d *GStreamerDriver) Pause() error                           { return errNoGStreamer }
func (d *GStreamerDriver) Resume() error                          { return errNoGStreamer }
func (d *GStreamerDriver) Stop() error                            { return errNoGStreamer }
func (d *GStreamerDriver) Seek(positionMS int64) error            { return errNoGStreamer }
