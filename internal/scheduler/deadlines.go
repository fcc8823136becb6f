package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/boardbeam/backend/internal/log"
)

type deadline struct {
	timer clockwork.Timer
	gen   uint64
}

// Deadlines fires keys after a delay. A key has at most one deadline, arming
// it again replaces the previous one. Expired keys are delivered on
// Expired() until Stop.
type Deadlines struct {
	clock clockwork.Clock

	mu      sync.Mutex
	pending map[string]deadline
	gen     uint64
	stopped bool

	expired chan string
	done    chan struct{}
	logger  *log.Logger
}

func NewDeadlines(clock clockwork.Clock, logger *log.Logger) *Deadlines {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Deadlines{
		clock:   clock,
		pending: make(map[string]deadline),
		expired: make(chan string),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Arm sets key to expire after d.
func (d *Deadlines) Arm(key string, after time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if cur, ok := d.pending[key]; ok {
		cur.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending[key] = deadline{
		timer: d.clock.AfterFunc(after, func() { d.fire(key, gen) }),
		gen:   gen,
	}
}

// Disarm drops the deadline of key, if any.
func (d *Deadlines) Disarm(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.pending[key]; ok {
		cur.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending reports whether key has a deadline that has not fired yet.
func (d *Deadlines) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

func (d *Deadlines) fire(key string, gen uint64) {
	d.mu.Lock()
	cur, ok := d.pending[key]
	if !ok || cur.gen != gen {
		// replaced or disarmed while the timer was firing
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	d.logger.Debug("Deadline expired", log.String("key", key))
	select {
	case d.expired <- key:
	case <-d.done:
	}
}

func (d *Deadlines) Expired() <-chan string {
	return d.expired
}

// Done is closed by Stop.
func (d *Deadlines) Done() <-chan struct{} {
	return d.done
}

// Stop drops every pending deadline. It is safe to call more than once.
func (d *Deadlines) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	for key, cur := range d.pending {
		cur.timer.Stop()
		delete(d.pending, key)
	}
	close(d.done)
}
