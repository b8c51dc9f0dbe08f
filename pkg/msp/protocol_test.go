package msp

import (
	"encoding/json"
	"testing"
)

func TestValidateCommandEnvelopeSessionRequired(t *testing.T) {
	cmd, err := NewCommand(TypeLibraryRoot, LibraryRootBody{})
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	cmd.ID = "id"
	cmd.TS = 1
	cmd.From = "tester"
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected session error")
	}

	cmd.Session = "s"
	if err := ValidateCommandEnvelope(cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCommandEnvelopeConnectWithoutSession(t *testing.T) {
	cmd, err := NewCommand(TypeConnect, ConnectBody{Name: "tester", ProtocolVersion: ProtocolVersion})
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	cmd.ID = "id"
	cmd.TS = 1
	cmd.From = "tester"
	if err := ValidateCommandEnvelope(cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCommandEnvelopeMissingFields(t *testing.T) {
	cmd := CommandEnvelope{}
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTopics(t *testing.T) {
	if got := TopicCommands(BaseTopic, "n1"); got != "msp/v1/node/n1/cmd" {
		t.Fatalf("unexpected command topic %q", got)
	}
	if got := TopicPush(BaseTopic, "s1"); got != "msp/v1/session/s1/push" {
		t.Fatalf("unexpected push topic %q", got)
	}
}

func TestCueGroupDropsBitmapCues(t *testing.T) {
	group := NewCueGroup([]Cue{
		{Text: "hello"},
		{Bitmap: []byte{1, 2, 3}},
		{Text: "world", Line: 0.9},
	}, 1500)

	payload, err := json.Marshal(group)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded CueGroup
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(decoded.Cues))
	}
	if decoded.Cues[1].Text != "world" || decoded.PresentationTimeUS != 1500 {
		t.Fatalf("unexpected group %+v", decoded)
	}
	if len(group.Cues) != 3 {
		t.Fatalf("marshal must not modify the source group")
	}
}

func TestCueGroupMissingCues(t *testing.T) {
	var decoded CueGroup
	if err := json.Unmarshal([]byte(`{"presentationTimeUs":7}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Cues == nil || len(decoded.Cues) != 0 {
		t.Fatalf("expected empty non-nil cues")
	}
	if decoded.PresentationTimeUS != 7 {
		t.Fatalf("expected presentation time 7")
	}
}
