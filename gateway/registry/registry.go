package registry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/internal/constants"
	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
)

const (
	ErrInvalidPayload errors.Code = "invalid_payload"
	ErrSeatTaken      errors.Code = "seat_taken"
	ErrAlreadyJoined  errors.Code = "already_joined"
	ErrInternal       errors.Code = "internal_error"
	ErrStopped        errors.Code = "registry_stopped"
)

// DenyReason maps a join error to the reason reported to the client.
func DenyReason(err error) constants.DenyReason {
	code, _ := errors.CodeOf(err)
	switch code {
	case ErrInvalidPayload:
		return constants.DenyInvalidPayload
	case ErrSeatTaken:
		return constants.DenySeatTaken
	case ErrAlreadyJoined:
		return constants.DenyAlreadyJoined
	default:
		return constants.DenyInternalError
	}
}

// Registry is the authority on room membership. All state is owned by a single
// loop goroutine; every operation is queued and runs to completion before the
// next one starts, which makes check-then-assign on seats atomic.
type Registry struct {
	rooms    map[string]*room
	sessions map[string]*gateway.Membership
	policy   constants.RejoinPolicy

	notifier gateway.Notifier
	observer gateway.RoomObserver

	eventCh chan func(ctx context.Context)
	done    chan struct{}
	logger  *log.Logger

	// runs once a join is accepted, before any mutation
	accepted func(req *JoinRequest)
}

type Option func(*Registry)

type JoinRequest struct {
	RoomKey   string
	Role      constants.Role
	SessionID string
	Name      string
}

type Stats struct {
	Rooms    int
	Sessions int
}

// outbound notification produced while mutating, sent once the step committed
type envelope struct {
	to     string
	method string
	params any
}

// public room change produced while mutating, reported to the observer once
// the step committed
type roomChange struct {
	key     string
	state   gateway.PublicRoomState
	removed bool
}

type joinPlan struct {
	cur  *gateway.Membership
	same bool
}

func New(
	cfg *Config,
	notifier gateway.Notifier,
	observer gateway.RoomObserver,
	logger *log.Logger,
	opts ...Option,
) *Registry {
	if notifier == nil {
		panic("notifier is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	policy := cfg.RejoinPolicy
	if policy == "" {
		policy = constants.RejoinSwitch
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = defaultQueueSize
	}

	r := &Registry{
		rooms:    make(map[string]*room),
		sessions: make(map[string]*gateway.Membership),
		policy:   policy,
		notifier: notifier,
		observer: observer,
		eventCh:  make(chan func(ctx context.Context), queue),
		done:     make(chan struct{}),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Start(ctx context.Context) {
	r.logger.Info("Starting", log.String("rejoin_policy", string(r.policy)))
	go r.loop(ctx)
}

// Done is closed once the loop has exited.
func (r *Registry) Done() <-chan struct{} {
	return r.done
}

func (r *Registry) loop(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopped",
				log.Int("rooms", len(r.rooms)),
				log.Int("sessions", len(r.sessions)))
			return
		case action := <-r.eventCh:
			eventQueueDepth.Add(ctx, -1)
			action(ctx)
		}
	}
}

func (r *Registry) submit(ctx context.Context, action func(ctx context.Context)) error {
	select {
	case r.eventCh <- action:
		eventQueueDepth.Add(ctx, 1)
		return nil
	case <-r.done:
		return errors.New(ErrStopped, "registry stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the loop and waits for its result.
func call[R any](ctx context.Context, r *Registry, fn func(ctx context.Context) R) (R, error) {
	var zero R
	ch := make(chan R, 1)
	if err := r.submit(ctx, func(ctx context.Context) { ch <- fn(ctx) }); err != nil {
		return zero, err
	}
	select {
	case v := <-ch:
		return v, nil
	case <-r.done:
		// the loop may have produced a value right before stopping
		select {
		case v := <-ch:
			return v, nil
		default:
		}
		return zero, errors.New(ErrStopped, "registry stopped")
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

type joinOutcome struct {
	state gateway.PublicRoomState
	err   error
}

// Join places a session into a seat or the spectator set of a room.
// On success the joiner receives joined and peers, every member receives
// room-state and every other member receives peer-joined.
func (r *Registry) Join(ctx context.Context, req JoinRequest) (gateway.PublicRoomState, error) {
	out, err := call(ctx, r, func(ctx context.Context) joinOutcome {
		state, err := r.doJoin(ctx, &req)
		return joinOutcome{state: state, err: err}
	})
	if err != nil {
		return gateway.PublicRoomState{}, err
	}
	return out.state, out.err
}

// Leave removes a session from its room. It is a no-op when not joined.
func (r *Registry) Leave(ctx context.Context, sessionID string) error {
	_, err := call(ctx, r, func(ctx context.Context) bool {
		left := r.doLeave(ctx, sessionID)
		if left {
			leaves.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", "leave")))
		}
		return left
	})
	return err
}

// DisconnectCleanup is Leave triggered by a dropped transport.
func (r *Registry) DisconnectCleanup(ctx context.Context, sessionID string) error {
	_, err := call(ctx, r, func(ctx context.Context) bool {
		left := r.doLeave(ctx, sessionID)
		if left {
			leaves.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", "disconnect")))
		}
		return left
	})
	return err
}

// Route reports the memberships of both ends of a relay attempt as one
// consistent snapshot.
func (r *Registry) Route(ctx context.Context, from, to string) (gateway.Route, error) {
	return call(ctx, r, func(context.Context) gateway.Route {
		route := gateway.Route{
			From: copyMembership(r.sessions[from]),
			To:   copyMembership(r.sessions[to]),
		}
		route.SameRoom = route.From != nil && route.To != nil && route.From.RoomKey == route.To.RoomKey
		return route
	})
}

// Membership returns the current membership of a session, nil when not joined.
func (r *Registry) Membership(ctx context.Context, sessionID string) (*gateway.Membership, error) {
	return call(ctx, r, func(context.Context) *gateway.Membership {
		return copyMembership(r.sessions[sessionID])
	})
}

// RoomState returns the public state of a live room.
func (r *Registry) RoomState(ctx context.Context, roomKey string) (gateway.PublicRoomState, bool, error) {
	type result struct {
		state gateway.PublicRoomState
		ok    bool
	}
	res, err := call(ctx, r, func(context.Context) result {
		rm, ok := r.rooms[roomKey]
		if !ok {
			return result{}
		}
		return result{state: rm.public(), ok: true}
	})
	return res.state, res.ok, err
}

func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	return call(ctx, r, func(context.Context) Stats {
		return Stats{Rooms: len(r.rooms), Sessions: len(r.sessions)}
	})
}

func (r *Registry) doJoin(ctx context.Context, req *JoinRequest) (gateway.PublicRoomState, error) {
	plan, err := r.planJoin(req)
	if err != nil {
		joinsDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(DenyReason(err)))))
		r.logger.Info("Join denied",
			log.String("session", req.SessionID),
			log.String("room", req.RoomKey),
			log.String("role", string(req.Role)),
			log.Error(err))
		return gateway.PublicRoomState{}, err
	}

	if plan.same {
		outbox, state := r.rejoinSame(plan.cur, req)
		r.flush(ctx, outbox)
		return state, nil
	}
	outbox, changes, state := r.applyJoin(ctx, req, plan.cur)
	r.flush(ctx, outbox)
	r.publish(changes)
	return state, nil
}

// planJoin decides whether a join is accepted without touching any state. A
// panic while deciding is reported as an internal error.
func (r *Registry) planJoin(req *JoinRequest) (plan joinPlan, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Join processing panicked",
				log.String("session", req.SessionID),
				log.Any("panic", rec))
			plan, err = joinPlan{}, errors.Newf(ErrInternal, "join panicked: %v", rec)
		}
	}()

	if req.RoomKey == "" || req.SessionID == "" || !req.Role.Valid() {
		return plan, errors.Newf(ErrInvalidPayload, "room %q role %q", req.RoomKey, req.Role)
	}

	cur := r.sessions[req.SessionID]
	if cur != nil && cur.RoomKey == req.RoomKey && cur.Role == req.Role {
		return joinPlan{cur: cur, same: true}, nil
	}
	if cur != nil && r.policy == constants.RejoinReject {
		return plan, errors.Newf(ErrAlreadyJoined, "session already in room %q as %s", cur.RoomKey, cur.Role)
	}

	// seat check comes before any implicit leave so a denied switch keeps the old slot
	if rm, ok := r.rooms[req.RoomKey]; ok && req.Role.IsSeat() {
		if holder := rm.seat(req.Role); holder != "" && holder != req.SessionID {
			return plan, errors.Newf(ErrSeatTaken, "seat %s of room %q", req.Role, req.RoomKey)
		}
	}

	if r.accepted != nil {
		r.accepted(req)
	}
	return joinPlan{cur: cur}, nil
}

// applyJoin moves the session into its new slot and returns what to announce.
func (r *Registry) applyJoin(
	ctx context.Context,
	req *JoinRequest,
	cur *gateway.Membership,
) ([]envelope, []roomChange, gateway.PublicRoomState) {
	var (
		outbox  []envelope
		changes []roomChange
	)
	if cur != nil {
		r.logger.Debug("Switching slot",
			log.String("session", req.SessionID),
			log.String("from_room", cur.RoomKey),
			log.String("from_role", string(cur.Role)))
		left, change := r.detach(ctx, req.SessionID)
		outbox = append(outbox, left...)
		changes = append(changes, change)
		leaves.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", "switch")))
	}

	rm, ok := r.rooms[req.RoomKey]
	if !ok {
		rm = newRoom(req.RoomKey)
		r.rooms[req.RoomKey] = rm
		activeRooms.Add(ctx, 1)
	}
	m := &gateway.Membership{
		SessionID: req.SessionID,
		RoomKey:   req.RoomKey,
		Role:      req.Role,
		Name:      req.Name,
	}
	rm.add(m)
	r.sessions[req.SessionID] = m
	activeSessions.Add(ctx, 1)
	joins.Add(ctx, 1, metric.WithAttributes(attribute.String("role", string(req.Role))))

	state := rm.public()
	outbox = append(outbox,
		envelope{to: m.SessionID, method: constants.NotifyJoined, params: joinedOf(m)},
		envelope{to: m.SessionID, method: constants.NotifyPeers, params: rm.roster(m.SessionID)},
	)
	for _, id := range rm.order {
		outbox = append(outbox, envelope{to: id, method: constants.NotifyRoomState, params: state})
	}
	arrived := gateway.PeerInfo{ID: m.SessionID, Role: m.Role, Name: m.Name}
	for _, id := range rm.order {
		if id != m.SessionID {
			outbox = append(outbox, envelope{to: id, method: constants.NotifyPeerJoined, params: arrived})
		}
	}
	changes = append(changes, roomChange{key: rm.key, state: state})

	r.logger.Info("Joined",
		log.String("session", m.SessionID),
		log.String("room", m.RoomKey),
		log.String("role", string(m.Role)),
		log.Int("members", len(rm.order)))
	return outbox, changes, state
}

// rejoinSame refreshes the joiner's view without announcing it again.
func (r *Registry) rejoinSame(cur *gateway.Membership, req *JoinRequest) ([]envelope, gateway.PublicRoomState) {
	cur.Name = req.Name
	rm := r.rooms[cur.RoomKey]
	state := rm.public()
	r.logger.Debug("Idempotent rejoin",
		log.String("session", cur.SessionID),
		log.String("room", cur.RoomKey))
	return []envelope{
		{to: cur.SessionID, method: constants.NotifyJoined, params: joinedOf(cur)},
		{to: cur.SessionID, method: constants.NotifyPeers, params: rm.roster(cur.SessionID)},
		{to: cur.SessionID, method: constants.NotifyRoomState, params: state},
	}, state
}

func (r *Registry) doLeave(ctx context.Context, sessionID string) bool {
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	outbox, change := r.detach(ctx, sessionID)
	r.flush(ctx, outbox)
	r.publish([]roomChange{change})
	return true
}

// detach removes a joined session from its room and returns the departure
// notifications for the remaining members.
func (r *Registry) detach(ctx context.Context, sessionID string) ([]envelope, roomChange) {
	m := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	activeSessions.Add(ctx, -1)

	rm := r.rooms[m.RoomKey]
	rm.remove(sessionID)

	r.logger.Info("Left",
		log.String("session", sessionID),
		log.String("room", m.RoomKey),
		log.String("role", string(m.Role)),
		log.Int("members", len(rm.order)))

	if rm.empty() {
		delete(r.rooms, m.RoomKey)
		activeRooms.Add(ctx, -1)
		r.logger.Debug("Room removed", log.String("room", m.RoomKey))
		return nil, roomChange{key: m.RoomKey, removed: true}
	}

	state := rm.public()
	left := gateway.PeerLeft{ID: sessionID, Role: m.Role}
	outbox := make([]envelope, 0, 2*len(rm.order))
	for _, id := range rm.order {
		outbox = append(outbox, envelope{to: id, method: constants.NotifyRoomState, params: state})
	}
	for _, id := range rm.order {
		outbox = append(outbox, envelope{to: id, method: constants.NotifyPeerLeft, params: left})
	}
	return outbox, roomChange{key: rm.key, state: state}
}

// publish reports committed room changes to the observer in order.
func (r *Registry) publish(changes []roomChange) {
	if r.observer == nil {
		return
	}
	for _, c := range changes {
		if err := r.safeObserve(c); err != nil {
			r.logger.Error("Room observer failed", log.String("room", c.key), log.Error(err))
		}
	}
}

func (r *Registry) safeObserve(c roomChange) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("observer panicked: %v", rec)
		}
	}()
	if c.removed {
		r.observer.RoomRemoved(c.key)
	} else {
		r.observer.RoomChanged(c.key, c.state)
	}
	return nil
}

// flush sends queued notifications, a failing recipient does not affect the others.
func (r *Registry) flush(ctx context.Context, outbox []envelope) {
	for _, e := range outbox {
		if err := r.safeNotify(ctx, e); err != nil {
			notifyFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("method", e.method)))
			r.logger.Debug("Notify failed",
				log.String("session", e.to),
				log.String("method", e.method),
				log.Error(err))
		}
	}
}

func (r *Registry) safeNotify(ctx context.Context, e envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("notifier panicked: %v", rec)
		}
	}()
	return r.notifier.Notify(ctx, e.to, e.method, e.params)
}

func joinedOf(m *gateway.Membership) gateway.Joined {
	return gateway.Joined{ID: m.SessionID, Role: m.Role, RoomKey: m.RoomKey}
}

func copyMembership(m *gateway.Membership) *gateway.Membership {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
