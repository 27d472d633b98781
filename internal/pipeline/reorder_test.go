package pipeline

import "testing"

func TestReorderBuffer_ReleasesInSequence(t *testing.T) {
	t.Parallel()
	buf := newReorderBuffer(0)

	if run := buf.Add(Record{Seq: 2}); len(run) != 0 {
		t.Fatalf("early arrival released %d records, want 0", len(run))
	}
	if run := buf.Add(Record{Seq: 1}); len(run) != 0 {
		t.Fatalf("early arrival released %d records, want 0", len(run))
	}
	if got := buf.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}

	run := buf.Add(Record{Seq: 0})
	if len(run) != 3 {
		t.Fatalf("released %d records, want 3", len(run))
	}
	for i, rec := range run {
		if rec.Seq != uint64(i) {
			t.Errorf("run[%d].Seq = %d, want %d", i, rec.Seq, i)
		}
	}
	if got := buf.Watermark(); got != 3 {
		t.Errorf("Watermark() = %d, want 3", got)
	}
	if got := buf.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}

func TestReorderBuffer_InOrderArrivalsPassThrough(t *testing.T) {
	t.Parallel()
	buf := newReorderBuffer(0)

	for seq := uint64(0); seq < 5; seq++ {
		run := buf.Add(Record{Seq: seq})
		if len(run) != 1 || run[0].Seq != seq {
			t.Fatalf("Add(%d) released %v, want exactly seq %d", seq, run, seq)
		}
	}
}

func TestReorderBuffer_StartsAtGivenWatermark(t *testing.T) {
	t.Parallel()
	buf := newReorderBuffer(10)

	if run := buf.Add(Record{Seq: 11}); len(run) != 0 {
		t.Fatal("released ahead of the watermark")
	}
	run := buf.Add(Record{Seq: 10})
	if len(run) != 2 {
		t.Fatalf("released %d records, want 2", len(run))
	}
}
