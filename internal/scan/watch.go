package scan

import "sync"

// watchBuffer is the per-subscriber channel capacity. A subscriber that falls
// further behind than this misses the oldest updates, never the ordering.
const watchBuffer = 16

// watcher fans out committed record writes to per-scan subscribers. It is the
// in-process equivalent of the document-change stream the mobile client
// subscribes to: the full record is pushed after every update.
type watcher struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan *Record
}

func newWatcher() *watcher {
	return &watcher{
		subs: make(map[string]map[int]chan *Record),
	}
}

// subscribe registers for updates to one scan. The returned cancel func must
// be called to release the subscription.
func (w *watcher) subscribe(scanID string) (<-chan *Record, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++

	ch := make(chan *Record, watchBuffer)
	if w.subs[scanID] == nil {
		w.subs[scanID] = make(map[int]chan *Record)
	}
	w.subs[scanID][id] = ch

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if subs, ok := w.subs[scanID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(w.subs, scanID)
			}
		}
	}
	return ch, cancel
}

// publish delivers a record to every subscriber of its scan id. Sends never
// block; a full subscriber channel drops the update.
func (w *watcher) publish(rec *Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ch := range w.subs[rec.ScanID] {
		select {
		case ch <- rec:
		default:
		}
	}
}
