package negotiation

import "sync"

// worker runs submitted operations one at a time, in submission order, on
// its own goroutine. Submitting never blocks.
type worker struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newWorker() *worker {
	w := &worker{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

// submit queues fn, it returns false once the worker is stopped.
func (w *worker) submit(fn func()) bool {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return false
	}
	w.queue = append(w.queue, fn)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// stop runs fn as the last operation, everything queued before it still runs.
func (w *worker) stop(fn func()) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	if fn != nil {
		w.queue = append(w.queue, fn)
	}
	w.stopped = true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) run() {
	defer close(w.done)

	for range w.wake {
		for {
			w.mu.Lock()
			if len(w.queue) == 0 {
				stopped := w.stopped
				w.mu.Unlock()
				if stopped {
					return
				}
				break
			}
			fn := w.queue[0]
			w.queue[0] = nil
			w.queue = w.queue[1:]
			w.mu.Unlock()

			fn()
		}
	}
}
