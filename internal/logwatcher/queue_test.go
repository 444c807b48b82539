package logwatcher

import "testing"

func TestQueueDropsOldestWhenFull(t *testing.T) {
	var dropped int
	q := NewQueue(3, 0.8, nil, func(n int) { dropped += n })

	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("c")
	q.Enqueue("d") // evicts "a"

	got := q.DequeueMany(10)
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
}

func TestQueueHighWaterFiresOnce(t *testing.T) {
	var fires int
	q := NewQueue(10, 0.8, func(depth int) { fires++ }, nil)

	for i := 0; i < 8; i++ {
		q.Enqueue("x")
	}
	if fires != 1 {
		t.Fatalf("fires = %d, want 1 after crossing threshold", fires)
	}
	q.Enqueue("x")
	if fires != 1 {
		t.Fatalf("fires = %d, want still 1 while above threshold", fires)
	}

	q.DequeueMany(5)
	q.Enqueue("x")
	q.Enqueue("x")
	q.Enqueue("x")
	q.Enqueue("x")
	if fires != 2 {
		t.Fatalf("fires = %d, want 2 after dropping below and crossing again", fires)
	}
}

func TestQueueDequeueManyCapsAtDepth(t *testing.T) {
	q := NewQueue(5, 0.8, nil, nil)
	q.Enqueue("a")
	q.Enqueue("b")

	got := q.DequeueMany(10)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if q.Depth() != 0 {
		t.Fatalf("depth = %d, want 0", q.Depth())
	}
}
