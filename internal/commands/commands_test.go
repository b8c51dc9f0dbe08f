package commands

import (
	"testing"

	"github.com/mikey-austin/media_session/pkg/msp"
)

func TestDefaultRegistry(t *testing.T) {
	reg := Default()
	ids := reg.Identifiers()
	if len(ids) != 2 || ids[0] != msp.CommandShuffleOn || ids[1] != msp.CommandShuffleOff {
		t.Fatalf("unexpected identifiers: %v", ids)
	}
	action, ok := reg.ByIdentifier(msp.CommandShuffleOff)
	if !ok || action.Label != ShuffleOff.Label {
		t.Fatalf("expected shuffle off action, got %+v", action)
	}
	if _, ok := reg.ByIdentifier("unknown"); ok {
		t.Fatalf("expected unknown identifier to be missing")
	}
}

func TestRegistryIgnoresDuplicates(t *testing.T) {
	reg := NewRegistry(ShuffleOn, CustomAction{Identifier: msp.CommandShuffleOn, Label: "dup"}, CustomAction{})
	if got := reg.Identifiers(); len(got) != 1 {
		t.Fatalf("expected 1 identifier, got %v", got)
	}
	action, _ := reg.ByIdentifier(msp.CommandShuffleOn)
	if action.Label != ShuffleOn.Label {
		t.Fatalf("expected first registration to win")
	}
}

func TestButtons(t *testing.T) {
	buttons := Buttons([]CustomAction{ShuffleOn})
	if len(buttons) != 1 || buttons[0].Identifier != msp.CommandShuffleOn || !buttons[0].Enabled {
		t.Fatalf("unexpected buttons: %+v", buttons)
	}
	if got := Buttons(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice")
	}
}
