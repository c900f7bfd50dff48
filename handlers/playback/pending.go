package playback

import (
	"container/heap"

	"avatarvoice/core"
)

// pendingBuffer holds synthesis results not yet played, keyed by unit index.
// The smallest index is always at the root.
type pendingBuffer struct {
	items resultHeap
}

func (p *pendingBuffer) Insert(r core.SynthesisResult) {
	heap.Push(&p.items, r)
}

// MinIndex returns the smallest pending index, or false when empty.
func (p *pendingBuffer) MinIndex() (int, bool) {
	if len(p.items) == 0 {
		return 0, false
	}
	return p.items[0].Index(), true
}

func (p *pendingBuffer) PopMin() core.SynthesisResult {
	return heap.Pop(&p.items).(core.SynthesisResult)
}

func (p *pendingBuffer) Len() int {
	return len(p.items)
}

func (p *pendingBuffer) Clear() {
	p.items = nil
}

type resultHeap []core.SynthesisResult

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return h[i].Index() < h[j].Index() }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x interface{}) {
	*h = append(*h, x.(core.SynthesisResult))
}

func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = core.SynthesisResult{}
	*h = old[:n-1]
	return item
}
