package session

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/mikey-austin/media_session/internal/catalog"
	"github.com/mikey-austin/media_session/internal/commands"
	"github.com/mikey-austin/media_session/internal/layout"
	"github.com/mikey-austin/media_session/pkg/msp"
	"go.uber.org/zap"
)

type fakeSink struct {
	layouts  chan []msp.CommandButton
	children chan msp.ChildrenChangedPush
	cues     chan msp.CueGroup
	err      error
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		layouts:  make(chan []msp.CommandButton, 256),
		children: make(chan msp.ChildrenChangedPush, 256),
		cues:     make(chan msp.CueGroup, 256),
	}
}

func (f *fakeSink) SendLayout(buttons []msp.CommandButton) error {
	f.layouts <- buttons
	return f.err
}

func (f *fakeSink) SendChildrenChanged(push msp.ChildrenChangedPush) error {
	f.children <- push
	return f.err
}

func (f *fakeSink) SendCues(group msp.CueGroup) error {
	f.cues <- group
	return f.err
}

type fakePlayer struct {
	mu      sync.Mutex
	shuffle bool
	calls   int
}

func (p *fakePlayer) ShuffleEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shuffle
}

func (p *fakePlayer) SetShuffleEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shuffle = enabled
	p.calls++
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Build(catalog.Description{
		Root: "root",
		Nodes: []catalog.NodeSpec{
			{ID: "root", Title: "Library", Children: []string{"jazz", "rock"}},
			{ID: "jazz", Title: "Jazz", Children: []string{"blue"}},
			{ID: "rock", Title: "Rock", Children: []string{"paranoid"}},
			{ID: "blue", Title: "Blue Train", Media: &catalog.Media{URL: "http://example.test/blue.mp3", Album: "Blue Train"}},
			{ID: "paranoid", Title: "Paranoid", Media: &catalog.Media{URL: "http://example.test/paranoid.mp3"}},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return cat
}

func newTestHandler(t *testing.T) (*Handler, *fakePlayer, *layout.State) {
	t.Helper()
	controllers := NewControllers(zap.NewNop())
	state := layout.New([]commands.CustomAction{commands.ShuffleOn}, controllers)
	player := &fakePlayer{}
	handler, err := NewHandler(Options{
		Log:         zap.NewNop(),
		Catalog:     testCatalog(t),
		Registry:    commands.Default(),
		Layout:      state,
		Controllers: controllers,
		Player:      player,
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, player, state
}

func connect(t *testing.T, h *Handler, id string, version int) (*Controller, *fakeSink) {
	t.Helper()
	sink := newFakeSink()
	c := NewController(id, "test "+id, version, sink)
	result := h.OnConnect(c)
	if !result.Accepted {
		t.Fatalf("expected connection accepted")
	}
	return c, sink
}

func expectLayout(t *testing.T, sink *fakeSink, identifier string) {
	t.Helper()
	select {
	case buttons := <-sink.layouts:
		if len(buttons) != 1 || buttons[0].Identifier != identifier {
			t.Fatalf("expected layout [%s], got %+v", identifier, buttons)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for layout %s", identifier)
	}
}

func expectNoLayout(t *testing.T, sink *fakeSink) {
	t.Helper()
	select {
	case buttons := <-sink.layouts:
		t.Fatalf("unexpected layout push %+v", buttons)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewHandlerRequiresCollaborators(t *testing.T) {
	if _, err := NewHandler(Options{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestConnectGrantsCommands(t *testing.T) {
	h, _, _ := newTestHandler(t)
	sink := newFakeSink()
	c := NewController("c1", "car", 1, sink)
	if c.State() != Connecting {
		t.Fatalf("expected connecting, got %s", c.State())
	}
	result := h.OnConnect(c)
	if !result.Accepted {
		t.Fatalf("expected accepted")
	}
	for _, cmd := range msp.SessionCommands {
		if !slices.Contains(result.AllowedCommands, cmd) || !c.Allowed(cmd) {
			t.Fatalf("expected %s allowed", cmd)
		}
	}
	for _, cmd := range []string{msp.CommandShuffleOn, msp.CommandShuffleOff} {
		if !slices.Contains(result.AllowedCommands, cmd) {
			t.Fatalf("expected custom command %s allowed", cmd)
		}
	}
	if !slices.Equal(result.AllowedPlayerCommands, msp.PlayerCommands) || !c.AllowedPlayer(msp.TypePlaybackSeek) {
		t.Fatalf("unexpected player commands: %v", result.AllowedPlayerCommands)
	}
	if c.State() != Connected {
		t.Fatalf("expected connected, got %s", c.State())
	}
	if got, ok := h.Controllers().Get("c1"); !ok || got != c {
		t.Fatalf("expected controller registered")
	}
}

func TestPostConnectPushesLayoutOnce(t *testing.T) {
	h, _, _ := newTestHandler(t)
	_, sink := connect(t, h, "c1", 1)
	c, _ := h.Controllers().Get("c1")
	h.OnPostConnect(c)
	expectLayout(t, sink, msp.CommandShuffleOn)
	expectNoLayout(t, sink)
}

func TestPostConnectSkipsLegacyController(t *testing.T) {
	h, _, _ := newTestHandler(t)
	c, sink := connect(t, h, "legacy", 0)
	h.OnPostConnect(c)
	expectNoLayout(t, sink)
}

func TestPostConnectSkipsEmptyLayout(t *testing.T) {
	h, _, state := newTestHandler(t)
	c, sink := connect(t, h, "c1", 1)
	state.Replace(nil)
	<-sink.layouts
	h.OnPostConnect(c)
	expectNoLayout(t, sink)
}

func TestPostConnectTargetsOnlyNewController(t *testing.T) {
	h, _, _ := newTestHandler(t)
	_, first := connect(t, h, "c1", 1)
	second, secondSink := connect(t, h, "c2", 1)
	h.OnPostConnect(second)
	expectLayout(t, secondSink, msp.CommandShuffleOn)
	expectNoLayout(t, first)
}

func TestShuffleToggleRoundTrip(t *testing.T) {
	h, player, state := newTestHandler(t)
	c, sink := connect(t, h, "c1", 1)
	_, other := connect(t, h, "c2", 1)

	result := h.OnCustomCommand(c, msp.CommandShuffleOn, nil)
	if !result.Applied {
		t.Fatalf("expected applied")
	}
	if !player.ShuffleEnabled() {
		t.Fatalf("expected shuffle enabled")
	}
	if got := state.Current(); len(got) != 1 || got[0].Identifier != msp.CommandShuffleOff {
		t.Fatalf("expected [shuffle-off], got %+v", got)
	}
	expectLayout(t, sink, msp.CommandShuffleOff)
	expectLayout(t, other, msp.CommandShuffleOff)

	result = h.OnCustomCommand(c, msp.CommandShuffleOff, nil)
	if !result.Applied {
		t.Fatalf("expected applied")
	}
	if player.ShuffleEnabled() {
		t.Fatalf("expected shuffle disabled")
	}
	if got := state.Current(); len(got) != 1 || got[0].Identifier != msp.CommandShuffleOn {
		t.Fatalf("expected [shuffle-on], got %+v", got)
	}
	expectLayout(t, sink, msp.CommandShuffleOn)
	expectLayout(t, other, msp.CommandShuffleOn)
}

func TestUnknownCustomCommandIsNoop(t *testing.T) {
	h, player, state := newTestHandler(t)
	c, sink := connect(t, h, "c1", 1)
	result := h.OnCustomCommand(c, "mss.unknown", map[string]any{"x": 1})
	if result.Applied {
		t.Fatalf("expected not applied")
	}
	if player.calls != 0 {
		t.Fatalf("player must not be touched")
	}
	if got := state.Current(); len(got) != 1 || got[0].Identifier != msp.CommandShuffleOn {
		t.Fatalf("layout changed: %+v", got)
	}
	expectNoLayout(t, sink)
}

func TestConcurrentTogglesStayConsistent(t *testing.T) {
	h, player, state := newTestHandler(t)
	c, _ := connect(t, h, "c1", 1)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := msp.CommandShuffleOn
			if i%2 == 1 {
				id = msp.CommandShuffleOff
			}
			h.OnCustomCommand(c, id, nil)
			current := state.Current()
			if len(current) != 1 {
				t.Errorf("expected single layout entry, got %+v", current)
			}
		}(i)
	}
	wg.Wait()

	current := state.Current()
	if len(current) != 1 {
		t.Fatalf("expected single layout entry, got %+v", current)
	}
	want := msp.CommandShuffleOn
	if player.ShuffleEnabled() {
		want = msp.CommandShuffleOff
	}
	if current[0].Identifier != want {
		t.Fatalf("layout %s disagrees with player shuffle=%v", current[0].Identifier, player.ShuffleEnabled())
	}
}

func TestDisconnectStopsPushes(t *testing.T) {
	h, _, _ := newTestHandler(t)
	c, sink := connect(t, h, "c1", 1)
	h.OnDisconnect(c)
	if c.State() != Disconnected {
		t.Fatalf("expected disconnected")
	}
	if h.Controllers().Len() != 0 {
		t.Fatalf("expected no controllers")
	}
	h.OnDisconnect(c)

	other, _ := connect(t, h, "c2", 1)
	h.OnCustomCommand(other, msp.CommandShuffleOn, nil)
	expectNoLayout(t, sink)
}

func TestBroadcastIgnoresSinkErrors(t *testing.T) {
	h, player, _ := newTestHandler(t)
	c, sink := connect(t, h, "c1", 1)
	sink.err = errors.New("gone")
	if !h.OnCustomCommand(c, msp.CommandShuffleOn, nil).Applied {
		t.Fatalf("expected applied despite push failure")
	}
	expectLayout(t, sink, msp.CommandShuffleOff)
	if !player.ShuffleEnabled() {
		t.Fatalf("expected shuffle enabled")
	}
}

func TestGetLibraryRoot(t *testing.T) {
	h, _, _ := newTestHandler(t)
	root := h.OnGetLibraryRoot(nil, nil)
	if root.ID != "root" || len(root.Children) != 2 {
		t.Fatalf("unexpected root %+v", root)
	}
}

func TestGetItem(t *testing.T) {
	h, _, _ := newTestHandler(t)
	for _, id := range []string{"root", "jazz", "rock", "blue", "paranoid"} {
		node, err := h.OnGetItem(nil, id)
		if err != nil {
			t.Fatalf("item %s: %v", id, err)
		}
		if node.ID != id {
			t.Fatalf("expected %s, got %s", id, node.ID)
		}
	}
	if _, err := h.OnGetItem(nil, "missing"); !errors.Is(err, ErrBadValue) {
		t.Fatalf("expected bad value, got %v", err)
	}
}

func TestSubscribeNotifiesChildCount(t *testing.T) {
	h, _, _ := newTestHandler(t)
	c, sink := connect(t, h, "c1", 1)
	params := map[string]any{"k": "v"}
	if err := h.OnSubscribe(c, "root", params); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	select {
	case push := <-sink.children:
		if push.ParentID != "root" || push.ChildCount != 2 || push.Params["k"] != "v" {
			t.Fatalf("unexpected push %+v", push)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for children push")
	}
}

func TestSubscribeUnknownParent(t *testing.T) {
	h, _, _ := newTestHandler(t)
	c, sink := connect(t, h, "c1", 1)
	if err := h.OnSubscribe(c, "missing", nil); !errors.Is(err, ErrBadValue) {
		t.Fatalf("expected bad value, got %v", err)
	}
	select {
	case push := <-sink.children:
		t.Fatalf("unexpected push %+v", push)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGetChildrenIgnoresPaging(t *testing.T) {
	h, _, _ := newTestHandler(t)
	children, err := h.OnGetChildren(nil, "root", 5, 1, nil)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 2 || children[0].ID != "jazz" || children[1].ID != "rock" {
		t.Fatalf("unexpected children %+v", children)
	}
	leaf, err := h.OnGetChildren(nil, "blue", 0, 10, nil)
	if err != nil || len(leaf) != 0 {
		t.Fatalf("expected empty children for leaf, got %+v %v", leaf, err)
	}
	if _, err := h.OnGetChildren(nil, "missing", 0, 10, nil); !errors.Is(err, ErrBadValue) {
		t.Fatalf("expected bad value, got %v", err)
	}
}

func TestAddMediaItems(t *testing.T) {
	h, _, _ := newTestHandler(t)
	passThrough := msp.MediaItem{ID: "external", Title: "External", Source: &msp.MediaSource{URL: "http://example.test/x.mp3"}}
	items := h.OnAddMediaItems(nil, []msp.MediaItem{
		{SearchQuery: "play Blue Train"},
		{ID: "paranoid"},
		passThrough,
		{Title: "untitled"},
	})
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	if items[0].ID != "blue" || items[0].Source == nil || items[0].Source.Album != "Blue Train" {
		t.Fatalf("expected blue from search, got %+v", items[0])
	}
	if items[1].ID != "paranoid" || !items[1].Playable {
		t.Fatalf("expected paranoid from id, got %+v", items[1])
	}
	if items[2].ID != passThrough.ID || items[2].Source != passThrough.Source {
		t.Fatalf("expected pass-through item, got %+v", items[2])
	}
	if items[3].Title != "untitled" {
		t.Fatalf("expected pass-through item, got %+v", items[3])
	}
}

func TestAddMediaItemsRandomFallback(t *testing.T) {
	h, _, _ := newTestHandler(t)
	items := h.OnAddMediaItems(nil, []msp.MediaItem{{SearchQuery: "play nothing like this"}})
	if len(items) != 1 || (items[0].ID != "blue" && items[0].ID != "paranoid") {
		t.Fatalf("expected a random leaf, got %+v", items)
	}
}

func TestCuesBroadcast(t *testing.T) {
	h, _, _ := newTestHandler(t)
	_, a := connect(t, h, "a", 1)
	_, b := connect(t, h, "b", 1)
	group := msp.NewCueGroup([]msp.Cue{{Text: "hello"}}, 42)
	h.OnCues(group)
	for _, sink := range []*fakeSink{a, b} {
		select {
		case got := <-sink.cues:
			if got.PresentationTimeUS != 42 || len(got.Cues) != 1 {
				t.Fatalf("unexpected cues %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for cues")
		}
	}
}

func TestMediaItemConversion(t *testing.T) {
	folder := MediaItem(catalog.Node{ID: "f", Title: "Folder", Children: []string{"a", "b"}})
	if !folder.Browsable || folder.Playable || folder.Children != 2 || folder.Source != nil {
		t.Fatalf("unexpected folder item %+v", folder)
	}
	leaf := MediaItem(catalog.Node{ID: "l", Title: "Leaf", Media: &catalog.Media{URL: "u", Mime: "audio/mpeg"}})
	if leaf.Browsable || !leaf.Playable || leaf.Source.Mime != "audio/mpeg" {
		t.Fatalf("unexpected leaf item %+v", leaf)
	}
}

// lastLayout drains sink until it has been quiet for 100ms.
func lastLayout(t *testing.T, sink *fakeSink) []msp.CommandButton {
	t.Helper()
	var last []msp.CommandButton
	seen := false
	for {
		select {
		case buttons := <-sink.layouts:
			last = buttons
			seen = true
		case <-time.After(100 * time.Millisecond):
			if !seen {
				t.Fatalf("no layout received")
			}
			return last
		}
	}
}

func TestLayoutPushesEndOnCurrentLayout(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		h, _, state := newTestHandler(t)
		c, first := connect(t, h, "c1", 1)
		_, second := connect(t, h, "c2", 1)

		late := NewController("c3", "late", 1, newFakeSink())
		lateSink := late.sink.(*fakeSink)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnConnect(late)
			h.OnPostConnect(late)
		}()
		for i := 0; i < 21; i++ {
			id := msp.CommandShuffleOn
			if i%2 == 1 {
				id = msp.CommandShuffleOff
			}
			h.OnCustomCommand(c, id, nil)
		}
		wg.Wait()

		want := state.Current()[0].Identifier
		for name, sink := range map[string]*fakeSink{"c1": first, "c2": second, "c3": lateSink} {
			got := lastLayout(t, sink)
			if len(got) != 1 || got[0].Identifier != want {
				t.Fatalf("trial %d: %s ended on %+v, current is %s", trial, name, got, want)
			}
		}
	}
}
