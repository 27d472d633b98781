package pipeline

// reorderBuffer restores capture order over records that complete out of
// order. Workers finish whenever their providers answer; the buffer holds
// early arrivals until every lower sequence number has been released.
//
// The watermark is the next sequence number eligible for release. Because
// every dispatched utterance produces exactly one record (failures included),
// the watermark always advances and the buffer never stalls.
//
// Owned by the collector goroutine; not safe for concurrent use.
type reorderBuffer struct {
	watermark uint64
	pending   map[uint64]Record
}

func newReorderBuffer(start uint64) *reorderBuffer {
	return &reorderBuffer{
		watermark: start,
		pending:   make(map[uint64]Record),
	}
}

// Add inserts rec and returns the run of records now releasable in order,
// starting at the watermark. The returned slice is empty when rec arrived
// ahead of a still-missing sequence number.
func (b *reorderBuffer) Add(rec Record) []Record {
	b.pending[rec.Seq] = rec

	var run []Record
	for {
		next, ok := b.pending[b.watermark]
		if !ok {
			break
		}
		delete(b.pending, b.watermark)
		run = append(run, next)
		b.watermark++
	}
	return run
}

// Watermark returns the next sequence number awaiting release.
func (b *reorderBuffer) Watermark() uint64 {
	return b.watermark
}

// Pending returns how many records are held waiting for earlier sequence
// numbers.
func (b *reorderBuffer) Pending() int {
	return len(b.pending)
}
