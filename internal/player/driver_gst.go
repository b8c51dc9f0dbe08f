//go:build gstreamer

package player

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"

	"github.com/mikey-austin/media_session/pkg/msp"
)

// DefaultPipeline plays a URL through playbin.
const DefaultPipeline = "playbin uri={url}"

// GStreamerDriver plays streams through a GStreamer pipeline template. Bus
// messages become Events: tags, end of stream and the sound server asking the
// sink to pause or resume. Subtitle text from a playbin is turned into cues.
type GStreamerDriver struct {
	mu        sync.Mutex
	pipeline  string
	device    string
	events    Events
	current   *gst.Element
	stopWatch chan struct{}
}

var gstInitOnce sync.Once

// NewGStreamerDriver creates a driver. The template may reference {url},
// {device} and {start_ms}.
func NewGStreamerDriver(pipeline string, device string) (*GStreamerDriver, error) {
	if strings.TrimSpace(pipeline) == "" {
		pipeline = DefaultPipeline
	}
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})
	return &GStreamerDriver{pipeline: pipeline, device: device}, nil
}

// SetEvents registers the event receivers.
func (d *GStreamerDriver) SetEvents(events Events) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = events
}

// Play starts playback for the URL.
func (d *GStreamerDriver) Play(url string, positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_ = d.stopLocked()
	launch := d.pipeline
	launch = strings.ReplaceAll(launch, "{url}", url)
	launch = strings.ReplaceAll(launch, "{device}", d.device)
	launch = strings.ReplaceAll(launch, "{start_ms}", fmt.Sprintf("%d", positionMS))

	el, err := gst.ParseLaunch(launch)
	if err != nil {
		return err
	}
	if d.events.Cues != nil {
		d.attachTextSink(el, d.events.Cues)
	}
	if err := el.SetState(gst.StatePlaying); err != nil {
		return err
	}
	if positionMS > 0 {
		_ = seekElement(el, positionMS)
	}
	d.current = el
	d.stopWatch = make(chan struct{})
	go watchBus(el, d.events, d.stopWatch)
	return nil
}

// Pause pauses playback.
func (d *GStreamerDriver) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return ErrNotPlaying
	}
	return d.current.SetState(gst.StatePaused)
}

// Resume resumes playback.
func (d *GStreamerDriver) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return ErrNotPlaying
	}
	return d.current.SetState(gst.StatePlaying)
}

// Stop stops playback.
func (d *GStreamerDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.stopLocked()
}

// Seek seeks within the current pipeline.
func (d *GStreamerDriver) Seek(positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return ErrNotPlaying
	}
	return seekElement(d.current, positionMS)
}

func (d *GStreamerDriver) stopLocked() error {
	if d.stopWatch != nil {
		close(d.stopWatch)
		d.stopWatch = nil
	}
	if d.current == nil {
		return nil
	}
	_ = d.current.SetState(gst.StateNull)
	d.current = nil
	return nil
}

func watchBus(el *gst.Element, events Events, stop <-chan struct{}) {
	bus := el.GetBus()
	for {
		select {
		case <-stop:
			return
		default:
		}
		msg := bus.TimedPopFiltered(gst.ClockTime(200*time.Millisecond), gst.MessageTag|gst.MessageEOS|gst.MessageRequestState)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			if events.EndOfStream != nil {
				events.EndOfStream()
			}
			return
		case gst.MessageRequestState:
			if events.Focus == nil {
				continue
			}
			switch msg.ParseRequestState() {
			case gst.StatePaused:
				events.Focus(false)
			case gst.StatePlaying:
				events.Focus(true)
			}
		case gst.MessageTag:
			if events.Metadata == nil {
				continue
			}
			tags := msg.ParseTags()
			if tags == nil {
				continue
			}
			values := map[string]string{}
			for _, tag := range []gst.Tag{gst.TagTitle, gst.TagOrganization, gst.TagGenre} {
				if value, ok := tags.GetString(tag); ok {
					values[string(tag)] = value
				}
			}
			for _, m := range MetadataFromTags(values) {
				events.Metadata(m)
			}
		}
	}
}

// attachTextSink routes playbin subtitle text into cues. Pipelines without a
// text-sink property are left alone.
func (d *GStreamerDriver) attachTextSink(el *gst.Element, onCues func([]msp.Cue, int64)) {
	sink, err := app.NewAppSink()
	if err != nil {
		return
	}
	sink.SetCaps(gst.NewCapsFromString("text/x-raw"))
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(s *app.Sink) gst.FlowReturn {
			sample := s.PullSample()
			if sample == nil {
				return gst.FlowEOS
			}
			buffer := sample.GetBuffer()
			if buffer == nil {
				return gst.FlowOK
			}
			cues, ptsUS := textCues(string(buffer.Bytes()), int64(buffer.PresentationTimestamp())/int64(time.Microsecond))
			onCues(cues, ptsUS)
			return gst.FlowOK
		},
	})
	if err := el.SetProperty("text-sink", sink.Element); err != nil {
		return
	}
}

func seekElement(el *gst.Element, positionMS int64) error {
	positionNS := positionMS * int64(time.Millisecond)
	return el.SeekSimple(gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit, positionNS)
}
