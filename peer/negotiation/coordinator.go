package negotiation

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/boardbeam/backend/internal/constants"
	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/internal/scheduler"
	"github.com/boardbeam/backend/peer"
)

const ErrPeerConnection errors.Code = "peer_connection"

const maxPendingCandidates = 128

const (
	closeDeparted   = "departed"
	closeFailed     = "failed"
	closeRemote     = "closed"
	closeTimeout    = "timeout"
	closeLocalLeave = "local_leave"
	closeReset      = "reset"
)

type Option func(*Coordinator)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithFactory(factory Factory) Option {
	return func(c *Coordinator) { c.factory = factory }
}

// Coordinator owns one negotiation link per remote peer of the room the
// local session joined. Every link runs its operations on its own worker so
// links progress independently and callers never block on a negotiation.
type Coordinator struct {
	cfg     *Config
	signals peer.SignalSender
	factory Factory
	clock   clockwork.Clock
	sched   *scheduler.Deadlines

	// lifetime of outbound signaling
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	self      peer.Ref
	links     map[string]*link
	remote    map[string]*peer.RemoteMedia
	local     *peer.LocalMedia
	mediaErr  error
	listeners []func()
	closed    bool

	logger *log.Logger
}

func New(cfg *Config, signals peer.SignalSender, logger *log.Logger, opts ...Option) (*Coordinator, error) {
	if signals == nil {
		panic("signal sender is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:     cfg,
		signals: signals,
		clock:   clockwork.NewRealClock(),
		ctx:     ctx,
		cancel:  cancel,
		links:   make(map[string]*link),
		remote:  make(map[string]*peer.RemoteMedia),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.factory == nil {
		factory, err := NewPionFactory(cfg)
		if err != nil {
			cancel()
			return nil, errors.Wrap(ErrPeerConnection, err, "pion factory")
		}
		c.factory = factory
	}

	c.sched = scheduler.NewDeadlines(c.clock, logger.Module("Timeouts"))
	go c.watchTimeouts()
	return c, nil
}

// SetSelf records the local session once the gateway confirmed the join.
func (c *Coordinator) SetSelf(self peer.Ref) {
	c.mu.Lock()
	c.self = self
	c.mu.Unlock()
	c.logger.Debug("Local session set",
		log.String("id", self.ID),
		log.String("role", string(self.Role)))
}

func (c *Coordinator) Self() peer.Ref {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// OnMediaChanged registers fn to run whenever remote media or a link closes.
func (c *Coordinator) OnMediaChanged(fn func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Coordinator) emitChanged() {
	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// AcquireLocalMedia captures media for seat holders. A failure is recorded
// and returned, the session continues without publishing.
func (c *Coordinator) AcquireLocalMedia(ctx context.Context, role constants.Role, provider peer.MediaProvider) error {
	if !role.IsSeat() || provider == nil {
		return nil
	}

	c.mu.Lock()
	have := c.local != nil
	c.mu.Unlock()
	if have {
		return nil
	}

	media, err := provider.Acquire(ctx)
	if err != nil {
		err = errors.Wrap(peer.ErrMediaUnavailable, err, "acquire local media")
		c.mu.Lock()
		c.mediaErr = err
		c.mu.Unlock()
		c.logger.Warn("Local media unavailable, continuing without publishing", log.Error(err))
		return err
	}

	c.mu.Lock()
	c.local = media
	c.mediaErr = nil
	c.mu.Unlock()
	c.logger.Info("Local media acquired", log.Int("tracks", len(media.Tracks)))
	return nil
}

func (c *Coordinator) LocalMedia() *peer.LocalMedia {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

// LastMediaError returns why local media could not be acquired, nil when it was.
func (c *Coordinator) LastMediaError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mediaErr
}

// OnPeerRoster creates links towards everyone already in the room.
func (c *Coordinator) OnPeerRoster(peers []peer.Ref) {
	for _, p := range peers {
		c.OnPeerArrived(p)
	}
}

// OnPeerArrived creates the link towards a new member. The initiating side
// sends an offer right away, the other side waits for it.
func (c *Coordinator) OnPeerArrived(p peer.Ref) {
	c.mu.Lock()
	self := c.self
	if c.closed || self.ID == "" || p.ID == "" || p.ID == self.ID {
		c.mu.Unlock()
		return
	}
	if !linked(self.Role, p.Role) {
		c.mu.Unlock()
		c.logger.Debug("No link between roles",
			log.String("peer", p.ID),
			log.String("role", string(p.Role)))
		return
	}
	if old, ok := c.links[p.ID]; ok && old.getPhase() != peer.PhaseClosed {
		c.mu.Unlock()
		return
	}

	dir := peer.DirectionResponder
	if ShouldInitiate(self.Role, p.Role) {
		dir = peer.DirectionInitiator
	}
	l := c.newLinkLocked(p, dir)
	c.mu.Unlock()

	if dir == peer.DirectionInitiator {
		l.w.submit(func() { c.sendOffer(l) })
	} else {
		l.setPhase(peer.PhaseAwaitingOffer)
	}
}

func (c *Coordinator) newLinkLocked(p peer.Ref, dir peer.Direction) *link {
	l := newLink(p, dir)
	l.created = c.clock.Now()
	c.links[p.ID] = l

	if c.cfg.NegotiationTimeout > 0 {
		c.sched.Arm(p.ID, c.cfg.NegotiationTimeout)
	} else {
		c.sched.Disarm(p.ID)
	}
	linksOpened.Add(c.ctx, 1, metric.WithAttributes(attribute.String("direction", string(dir))))
	c.logger.Debug("Link created",
		log.String("peer", p.ID),
		log.String("role", string(p.Role)),
		log.String("direction", string(dir)))
	return l
}

func (c *Coordinator) link(peerID string) *link {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.links[peerID]
}

// OnOfferReceived answers an offer, creating the responder link when the
// offer arrived before the membership notification.
func (c *Coordinator) OnOfferReceived(from string, fromRole constants.Role, sdp json.RawMessage) {
	c.mu.Lock()
	if c.closed || c.self.ID == "" {
		c.mu.Unlock()
		c.logger.Debug("Ignoring offer outside a room", log.String("peer", from))
		return
	}
	l, ok := c.links[from]
	if !ok || l.getPhase() == peer.PhaseClosed {
		l = c.newLinkLocked(peer.Ref{ID: from, Role: fromRole}, peer.DirectionResponder)
		l.setPhase(peer.PhaseAwaitingOffer)
	}
	c.mu.Unlock()

	if l.dir != peer.DirectionResponder {
		c.logger.Warn("Ignoring offer on initiator link", log.String("peer", from))
		return
	}
	l.w.submit(func() { c.sendAnswer(l, sdp) })
}

// OnAnswerReceived completes an offer this side sent.
func (c *Coordinator) OnAnswerReceived(from string, sdp json.RawMessage) {
	l := c.link(from)
	if l == nil {
		return
	}
	l.w.submit(func() { c.applyAnswer(l, sdp) })
}

// OnIceCandidateReceived applies a remote candidate. Candidates arriving
// before the remote description are held and applied once it is set.
func (c *Coordinator) OnIceCandidateReceived(from string, candidate json.RawMessage) {
	l := c.link(from)
	if l == nil {
		return
	}
	l.w.submit(func() { c.addCandidate(l, candidate) })
}

// OnTrackReceived merges a remote track into the peer's remote media.
func (c *Coordinator) OnTrackReceived(from string, track peer.TrackInfo) {
	c.mu.Lock()
	l, ok := c.links[from]
	if !ok {
		c.mu.Unlock()
		return
	}
	rm, ok := c.remote[from]
	if !ok {
		rm = &peer.RemoteMedia{PeerID: from, Role: l.role}
		c.remote[from] = rm
	}
	if slices.ContainsFunc(rm.Tracks, func(t peer.TrackInfo) bool { return t.ID == track.ID }) {
		c.mu.Unlock()
		return
	}
	rm.Tracks = append(rm.Tracks, track)
	c.mu.Unlock()

	c.logger.Debug("Remote track",
		log.String("peer", from),
		log.String("kind", track.Kind),
		log.String("track", track.ID))
	c.emitChanged()
}

// OnPeerDeparted tears the link down and forgets the peer's media.
func (c *Coordinator) OnPeerDeparted(peerID string) {
	c.mu.Lock()
	l := c.links[peerID]
	delete(c.links, peerID)
	_, hadMedia := c.remote[peerID]
	delete(c.remote, peerID)
	c.mu.Unlock()

	c.sched.Disarm(peerID)
	if l != nil {
		l.w.stop(func() { c.teardown(l, closeDeparted) })
	}
	if l != nil || hadMedia {
		c.emitChanged()
	}
}

// Reset closes every link, keeping local media. Used when the local session
// moves to another room.
func (c *Coordinator) Reset() {
	c.closeAll(closeReset)
}

// Leave forgets the local slot, tears down every link and releases local
// media. Negotiation starts again with the next SetSelf.
func (c *Coordinator) Leave() {
	c.mu.Lock()
	c.self = peer.Ref{}
	c.mu.Unlock()

	for _, w := range c.closeAll(closeLocalLeave) {
		<-w.done
	}
	c.ReleaseLocalMedia()
	c.logger.Debug("Left room")
}

// ReleaseLocalMedia stops the capture, the next AcquireLocalMedia captures
// again. Links already negotiated keep their senders.
func (c *Coordinator) ReleaseLocalMedia() {
	c.mu.Lock()
	local := c.local
	c.local = nil
	c.mediaErr = nil
	c.mu.Unlock()

	if local != nil {
		local.Release()
		c.logger.Info("Local media released")
	}
}

// Close tears down every link and releases local media. The coordinator
// cannot be used afterwards.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	workers := c.closeAll(closeLocalLeave)
	for _, w := range workers {
		<-w.done
	}
	c.ReleaseLocalMedia()

	c.sched.Stop()
	c.cancel()
	c.logger.Info("Coordinator closed")
}

func (c *Coordinator) closeAll(reason string) []*worker {
	c.mu.Lock()
	links := c.links
	c.links = make(map[string]*link)
	c.remote = make(map[string]*peer.RemoteMedia)
	c.mu.Unlock()

	workers := make([]*worker, 0, len(links))
	for id, l := range links {
		c.sched.Disarm(id)
		l.w.stop(func() { c.teardown(l, reason) })
		workers = append(workers, l.w)
	}
	if len(links) > 0 {
		c.emitChanged()
	}
	return workers
}

// Links returns every link sorted by peer id.
func (c *Coordinator) Links() []peer.LinkInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]peer.LinkInfo, 0, len(c.links))
	for _, l := range c.links {
		out = append(out, l.info())
	}
	slices.SortFunc(out, func(a, b peer.LinkInfo) int { return strings.Compare(a.PeerID, b.PeerID) })
	return out
}

// RemoteMedia returns the media of every remote peer sorted by peer id.
func (c *Coordinator) RemoteMedia() []peer.RemoteMedia {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]peer.RemoteMedia, 0, len(c.remote))
	for _, rm := range c.remote {
		out = append(out, peer.RemoteMedia{
			PeerID: rm.PeerID,
			Role:   rm.Role,
			Tracks: slices.Clone(rm.Tracks),
		})
	}
	slices.SortFunc(out, func(a, b peer.RemoteMedia) int { return strings.Compare(a.PeerID, b.PeerID) })
	return out
}

func (c *Coordinator) watchTimeouts() {
	for {
		var peerID string
		select {
		case peerID = <-c.sched.Expired():
		case <-c.sched.Done():
			return
		}

		l := c.link(peerID)
		if l == nil {
			continue
		}
		l.w.submit(func() {
			if p := l.getPhase(); p == peer.PhaseActive || p == peer.PhaseClosed {
				return
			}
			c.logger.Info("Negotiation timed out",
				log.String("peer", l.peerID),
				log.String("phase", string(l.getPhase())),
				log.Duration("after", c.cfg.NegotiationTimeout))
			c.teardown(l, closeTimeout)
			l.w.stop(nil)
		})
	}
}

// current reports whether l is still the registered link of its peer.
func (c *Coordinator) current(l *link) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.links[l.peerID] == l
}

// fail closes a link after a negotiation step failed, other links are unaffected.
func (c *Coordinator) fail(l *link, step string, err error) {
	c.logger.Warn("Negotiation failed",
		log.String("peer", l.peerID),
		log.String("step", step),
		log.Error(err))
	c.teardown(l, closeFailed)
	l.w.stop(nil)
}

// teardown runs on the link worker.
func (c *Coordinator) teardown(l *link, reason string) {
	prev := l.setPhase(peer.PhaseClosed)
	if prev == peer.PhaseClosed {
		return
	}

	for _, sender := range l.senders {
		if sender == nil || l.pc == nil {
			continue
		}
		if err := l.pc.RemoveTrack(sender); err != nil {
			c.logger.Debug("Failed to detach track", log.String("peer", l.peerID), log.Error(err))
		}
	}
	l.senders = nil
	l.pending = nil
	if l.pc != nil {
		if err := l.pc.Close(); err != nil {
			c.logger.Debug("Failed to close peer connection", log.String("peer", l.peerID), log.Error(err))
		}
	}

	if prev == peer.PhaseActive {
		linksActive.Add(c.ctx, -1)
	}
	linksClosed.Add(c.ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))

	removed := false
	if c.current(l) {
		c.sched.Disarm(l.peerID)
		c.mu.Lock()
		_, removed = c.remote[l.peerID]
		delete(c.remote, l.peerID)
		c.mu.Unlock()
	}

	c.logger.Info("Link closed",
		log.String("peer", l.peerID),
		log.String("from_phase", string(prev)),
		log.String("reason", reason))

	// departures and resets already announced the change
	if reason != closeDeparted && reason != closeReset && reason != closeLocalLeave || removed {
		c.emitChanged()
	}
}
