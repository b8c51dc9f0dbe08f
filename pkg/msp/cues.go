package msp

import "encoding/json"

// Cue is a single subtitle or caption cue.
type Cue struct {
	Text     string  `json:"text,omitempty"`
	Line     float64 `json:"line,omitempty"`
	Position float64 `json:"position,omitempty"`
	Size     float64 `json:"size,omitempty"`
	Bitmap   []byte  `json:"bitmap,omitempty"`
}

// CueGroup is the set of cues active at a presentation time, in ascending
// priority order. Later cues are drawn on top of earlier ones.
type CueGroup struct {
	Cues               []Cue
	PresentationTimeUS int64
}

// EmptyCueGroup has no cues and a presentation time of zero.
var EmptyCueGroup = CueGroup{Cues: []Cue{}}

type cueGroupWire struct {
	Cues               []Cue `json:"cues"`
	PresentationTimeUS int64 `json:"presentationTimeUs"`
}

// NewCueGroup copies cues into a new group.
func NewCueGroup(cues []Cue, presentationTimeUS int64) CueGroup {
	out := make([]Cue, len(cues))
	copy(out, cues)
	return CueGroup{Cues: out, PresentationTimeUS: presentationTimeUS}
}

// MarshalJSON encodes the group without bitmap cues, which are too large to
// ship to remote controllers.
func (g CueGroup) MarshalJSON() ([]byte, error) {
	return json.Marshal(cueGroupWire{
		Cues:               withoutBitmaps(g.Cues),
		PresentationTimeUS: g.PresentationTimeUS,
	})
}

// UnmarshalJSON decodes a group; a missing cue list yields an empty group.
func (g *CueGroup) UnmarshalJSON(data []byte) error {
	var wire cueGroupWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Cues == nil {
		wire.Cues = []Cue{}
	}
	g.Cues = wire.Cues
	g.PresentationTimeUS = wire.PresentationTimeUS
	return nil
}

func withoutBitmaps(cues []Cue) []Cue {
	out := make([]Cue, 0, len(cues))
	for _, cue := range cues {
		if cue.Bitmap != nil {
			continue
		}
		out = append(out, cue)
	}
	return out
}
