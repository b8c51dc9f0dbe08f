package layout

import (
	"sync"
	"testing"

	"github.com/mikey-austin/media_session/internal/commands"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	sent     [][]commands.CustomAction
	versions []uint64
}

func (r *recordingBroadcaster) BroadcastLayout(version uint64, actions []commands.CustomAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, actions)
	r.versions = append(r.versions, version)
}

func TestCurrentReturnsCopy(t *testing.T) {
	state := New([]commands.CustomAction{commands.ShuffleOn}, nil)
	current := state.Current()
	current[0] = commands.ShuffleOff
	if state.Current()[0].Identifier != commands.ShuffleOn.Identifier {
		t.Fatalf("layout mutated through returned slice")
	}
}

func TestReplaceBroadcasts(t *testing.T) {
	rec := &recordingBroadcaster{}
	state := New([]commands.CustomAction{commands.ShuffleOn}, rec)
	state.Replace([]commands.CustomAction{commands.ShuffleOff})

	if got := state.Current(); len(got) != 1 || got[0].Identifier != commands.ShuffleOff.Identifier {
		t.Fatalf("unexpected layout: %+v", got)
	}
	if len(rec.sent) != 1 || rec.sent[0][0].Identifier != commands.ShuffleOff.Identifier {
		t.Fatalf("expected one broadcast of shuffle off, got %+v", rec.sent)
	}
}

func TestReplaceBroadcastsIncreasingVersions(t *testing.T) {
	rec := &recordingBroadcaster{}
	state := New([]commands.CustomAction{commands.ShuffleOn}, rec)
	if _, version := state.Snapshot(); version != 1 {
		t.Fatalf("expected initial version 1, got %d", version)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				state.Replace([]commands.CustomAction{commands.ShuffleOff})
			} else {
				state.Replace([]commands.CustomAction{commands.ShuffleOn})
			}
		}(i)
	}
	wg.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.versions) != 20 {
		t.Fatalf("expected 20 broadcasts, got %d", len(rec.versions))
	}
	for i, version := range rec.versions {
		if version != uint64(i+2) {
			t.Fatalf("broadcast %d carried version %d", i, version)
		}
	}
	current, version := state.Snapshot()
	last := rec.sent[len(rec.sent)-1]
	if version != 21 || current[0].Identifier != last[0].Identifier {
		t.Fatalf("last broadcast %+v does not match current %+v (version %d)", last, current, version)
	}
}

func TestReplaceIsNeverPartial(t *testing.T) {
	on := []commands.CustomAction{commands.ShuffleOn}
	off := []commands.CustomAction{commands.ShuffleOff, commands.ShuffleOff}
	state := New(on, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			state.Replace(off)
			state.Replace(on)
		}()
		go func() {
			defer wg.Done()
			current := state.Current()
			switch len(current) {
			case 1:
				if current[0].Identifier != commands.ShuffleOn.Identifier {
					t.Errorf("mixed layout: %+v", current)
				}
			case 2:
				if current[0].Identifier != commands.ShuffleOff.Identifier || current[1].Identifier != commands.ShuffleOff.Identifier {
					t.Errorf("mixed layout: %+v", current)
				}
			default:
				t.Errorf("unexpected layout length %d", len(current))
			}
		}()
	}
	wg.Wait()
}
