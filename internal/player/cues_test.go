package player

import "testing"

func TestTextCuesStripsMarkup(t *testing.T) {
	cues, pts := textCues("<i>Hello</i> there\r\n\n<b>Tom &amp; Jerry</b>\n", 1500)
	if pts != 1500 {
		t.Fatalf("unexpected pts %d", pts)
	}
	if len(cues) != 2 || cues[0].Text != "Hello there" || cues[1].Text != "Tom & Jerry" {
		t.Fatalf("unexpected cues %+v", cues)
	}
}

func TestTextCuesBlankClears(t *testing.T) {
	cues, pts := textCues("  \n", -5)
	if cues == nil || len(cues) != 0 {
		t.Fatalf("expected empty non-nil cues, got %+v", cues)
	}
	if pts != 0 {
		t.Fatalf("negative pts should clamp to 0, got %d", pts)
	}
}
