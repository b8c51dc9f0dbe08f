package mediasession

import (
	"encoding/json"

	"github.com/mikey-austin/media_session/pkg/msp"
)

// PushSink encodes pushes as msp.PushEnvelope JSON and hands them to send.
type PushSink struct {
	send func(payload []byte) error
	now  func() int64
}

// NewPushSink creates a sink around a raw payload sender.
func NewPushSink(send func(payload []byte) error, now func() int64) *PushSink {
	return &PushSink{send: send, now: now}
}

// SendLayout pushes the advertised custom actions.
func (p *PushSink) SendLayout(buttons []msp.CommandButton) error {
	return p.push(msp.PushLayout, msp.LayoutPush{Buttons: buttons})
}

// SendChildrenChanged pushes a child count notification.
func (p *PushSink) SendChildrenChanged(push msp.ChildrenChangedPush) error {
	return p.push(msp.PushChildrenChanged, push)
}

// SendCues pushes the active cue group.
func (p *PushSink) SendCues(group msp.CueGroup) error {
	return p.push(msp.PushCues, group)
}

func (p *PushSink) push(pushType string, body any) error {
	envelope, err := msp.NewPush(pushType, p.now(), body)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return p.send(payload)
}
