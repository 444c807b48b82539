package logwatcher

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestLineSplitterCarriesPartialFragment(t *testing.T) {
	var s lineSplitter
	var got []string
	deliver := func(line string) { got = append(got, line) }

	s.feed([]byte("alpha\nbra"), deliver)
	if len(got) != 1 || got[0] != "alpha" {
		t.Fatalf("got %v, want [alpha]", got)
	}

	s.feed([]byte("vo\ncharlie\n"), deliver)
	want := []string{"alpha", "bravo", "charlie"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLineSplitterStripsCarriageReturns(t *testing.T) {
	var s lineSplitter
	var got []string
	s.feed([]byte("one\r\ntwo\r\n"), func(line string) { got = append(got, line) })

	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("got %v, want [one two]", got)
	}
}

func TestLineSplitterResetDiscardsFragment(t *testing.T) {
	var s lineSplitter
	var got []string
	deliver := func(line string) { got = append(got, line) }

	s.feed([]byte("incomple"), deliver)
	s.reset()
	s.feed([]byte("fresh\n"), deliver)

	if len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("got %v, want [fresh] (pre-rotation fragment discarded)", got)
	}
}

func TestRemotePollerFetchesOnlyTheTailRange(t *testing.T) {
	var p remotePoller
	p.lastPosition = 1000

	fetch, from := p.observe(1500)
	if !fetch || from != 1000 {
		t.Fatalf("observe(1500) = %v, %d; want fetch from 1000", fetch, from)
	}
	if p.lastPosition != 1500 {
		t.Fatalf("lastPosition = %d, want 1500", p.lastPosition)
	}

	// Unchanged size: nothing to fetch.
	if fetch, _ := p.observe(1500); fetch {
		t.Fatal("observe(unchanged) should not fetch")
	}
}

func TestRemotePollerRotationResetsToStart(t *testing.T) {
	var p remotePoller
	p.lastPosition = 5000

	// The file shrank: rotation. Position resets and the 1000 fresh bytes
	// are fetched from offset 0.
	fetch, from := p.observe(1000)
	if !fetch || from != 0 {
		t.Fatalf("observe(1000) after rotation = %v, %d; want fetch from 0", fetch, from)
	}
	if p.lastPosition != 1000 {
		t.Fatalf("lastPosition = %d, want 1000", p.lastPosition)
	}
}

func TestRemotePollerPreventsOverlappingPolls(t *testing.T) {
	var p remotePoller
	if !p.beginPoll() {
		t.Fatal("first beginPoll should acquire")
	}
	if p.beginPoll() {
		t.Fatal("second beginPoll should be refused while the first is running")
	}
	p.endPoll()
	if !p.beginPoll() {
		t.Fatal("beginPoll should acquire again after endPoll")
	}
}

func TestNewSourceSelectsImplementation(t *testing.T) {
	log := zerolog.Nop()

	if _, err := NewSource(SourceConfig{Mode: ModeTail}, log); err != nil {
		t.Fatalf("tail: %v", err)
	}
	if _, err := NewSource(SourceConfig{Mode: ModeFTP}, log); err != nil {
		t.Fatalf("ftp: %v", err)
	}
	if _, err := NewSource(SourceConfig{Mode: ModeSFTP}, log); err != nil {
		t.Fatalf("sftp: %v", err)
	}
	if _, err := NewSource(SourceConfig{Mode: "carrier-pigeon"}, log); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
