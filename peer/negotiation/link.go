package negotiation

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/boardbeam/backend/internal/constants"
	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/peer"
)

const ErrBadDescription errors.Code = "bad_description"

// link is the negotiation with one remote peer.
type link struct {
	peerID  string
	role    constants.Role
	dir     peer.Direction
	w       *worker
	created time.Time

	// owned by the worker goroutine
	pc        PeerConnection
	senders   []*webrtc.RTPSender
	pending   []webrtc.ICECandidateInit
	remoteSet bool
	attached  bool

	mu    sync.Mutex
	phase peer.LinkPhase
}

func newLink(p peer.Ref, dir peer.Direction) *link {
	return &link{
		peerID: p.ID,
		role:   p.Role,
		dir:    dir,
		w:      newWorker(),
		phase:  peer.PhaseIdle,
	}
}

func (l *link) getPhase() peer.LinkPhase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// setPhase returns the previous phase. A closed link stays closed.
func (l *link) setPhase(p peer.LinkPhase) peer.LinkPhase {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.phase
	if prev != peer.PhaseClosed {
		l.phase = p
	}
	return prev
}

func (l *link) info() peer.LinkInfo {
	return peer.LinkInfo{
		PeerID:    l.peerID,
		Role:      l.role,
		Direction: l.dir,
		Phase:     l.getPhase(),
	}
}

func (l *link) closed() bool {
	return l.getPhase() == peer.PhaseClosed
}

func (c *Coordinator) ensurePC(l *link) error {
	if l.pc != nil {
		return nil
	}
	pc, err := c.factory()
	if err != nil {
		return errors.Wrap(ErrPeerConnection, err, "new peer connection")
	}
	l.pc = pc

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		candInit := cand.ToJSON()
		l.w.submit(func() { c.sendCandidate(l, candInit) })
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go drainTrack(track)
		c.OnTrackReceived(l.peerID, peer.TrackInfo{
			ID:       track.ID(),
			StreamID: track.StreamID(),
			Kind:     track.Kind().String(),
		})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		l.w.submit(func() { c.onConnectionState(l, state) })
	})
	return nil
}

func drainTrack(track *webrtc.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}

// attachLocal adds every local track to the link once.
func (c *Coordinator) attachLocal(l *link) {
	if l.attached {
		return
	}
	l.attached = true

	media := c.LocalMedia()
	if media == nil {
		return
	}
	for _, track := range media.Tracks {
		sender, err := l.pc.AddTrack(track)
		if err != nil {
			c.logger.Warn("Failed to attach local track",
				log.String("peer", l.peerID),
				log.String("track", track.ID()),
				log.Error(err))
			continue
		}
		if sender == nil {
			continue
		}
		l.senders = append(l.senders, sender)
		go drainRTCP(sender)
	}
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// addReceivers makes an offer ask for audio and video even when this side
// has nothing to send for that kind.
func (c *Coordinator) addReceivers(l *link) {
	media := c.LocalMedia()
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if media.HasKind(kind) {
			continue
		}
		_, err := l.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			c.logger.Debug("Failed to add receiver",
				log.String("peer", l.peerID),
				log.String("kind", kind.String()),
				log.Error(err))
		}
	}
}

func (c *Coordinator) sendOffer(l *link) {
	if l.closed() {
		return
	}
	if err := c.ensurePC(l); err != nil {
		c.fail(l, "peer_connection", err)
		return
	}
	c.attachLocal(l)
	c.addReceivers(l)

	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		c.fail(l, "create_offer", err)
		return
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		c.fail(l, "set_local", err)
		return
	}
	payload, err := json.Marshal(offer)
	if err != nil {
		c.fail(l, "encode_offer", err)
		return
	}

	l.setPhase(peer.PhaseOfferSent)
	if err := c.signals.SendSignal(c.ctx, l.peerID, constants.SignalOffer, payload); err != nil {
		c.fail(l, "send_offer", err)
		return
	}
	offersSent.Add(c.ctx, 1)
	c.logger.Debug("Offer sent", log.String("peer", l.peerID))
}

func (c *Coordinator) sendAnswer(l *link, sdp json.RawMessage) {
	if l.closed() {
		return
	}
	desc, err := decodeDescription(sdp, webrtc.SDPTypeOffer)
	if err != nil {
		c.fail(l, "decode_offer", err)
		return
	}
	if err := c.ensurePC(l); err != nil {
		c.fail(l, "peer_connection", err)
		return
	}
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		c.fail(l, "set_remote", err)
		return
	}
	l.remoteSet = true
	c.flushCandidates(l)
	c.attachLocal(l)

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		c.fail(l, "create_answer", err)
		return
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		c.fail(l, "set_local", err)
		return
	}
	payload, err := json.Marshal(answer)
	if err != nil {
		c.fail(l, "encode_answer", err)
		return
	}

	if l.getPhase() != peer.PhaseActive {
		l.setPhase(peer.PhaseAnswerExchanged)
	}
	if err := c.signals.SendSignal(c.ctx, l.peerID, constants.SignalAnswer, payload); err != nil {
		c.fail(l, "send_answer", err)
		return
	}
	answersSent.Add(c.ctx, 1)
	c.logger.Debug("Answer sent", log.String("peer", l.peerID))
}

func (c *Coordinator) applyAnswer(l *link, sdp json.RawMessage) {
	if phase := l.getPhase(); phase != peer.PhaseOfferSent {
		c.logger.Debug("Ignoring answer",
			log.String("peer", l.peerID),
			log.String("phase", string(phase)))
		return
	}
	desc, err := decodeDescription(sdp, webrtc.SDPTypeAnswer)
	if err != nil {
		c.fail(l, "decode_answer", err)
		return
	}
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		c.fail(l, "set_remote", err)
		return
	}
	l.remoteSet = true
	c.flushCandidates(l)
	l.setPhase(peer.PhaseAnswerExchanged)
	c.logger.Debug("Answer applied", log.String("peer", l.peerID))
}

func (c *Coordinator) addCandidate(l *link, raw json.RawMessage) {
	if l.closed() {
		return
	}
	var candInit webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &candInit); err != nil {
		c.logger.Debug("Ignoring undecodable candidate", log.String("peer", l.peerID), log.Error(err))
		return
	}

	if !l.remoteSet {
		if len(l.pending) >= maxPendingCandidates {
			c.logger.Debug("Pending candidates full, dropping", log.String("peer", l.peerID))
			return
		}
		l.pending = append(l.pending, candInit)
		candidatesQueue.Add(c.ctx, 1)
		return
	}
	if err := l.pc.AddICECandidate(candInit); err != nil {
		c.logger.Debug("Failed to add candidate", log.String("peer", l.peerID), log.Error(err))
	}
}

func (c *Coordinator) flushCandidates(l *link) {
	pending := l.pending
	l.pending = nil
	for _, candInit := range pending {
		if err := l.pc.AddICECandidate(candInit); err != nil {
			c.logger.Debug("Failed to add candidate", log.String("peer", l.peerID), log.Error(err))
		}
	}
}

func (c *Coordinator) sendCandidate(l *link, candInit webrtc.ICECandidateInit) {
	if l.closed() {
		return
	}
	payload, err := json.Marshal(candInit)
	if err != nil {
		return
	}
	if err := c.signals.SendSignal(c.ctx, l.peerID, constants.SignalCandidate, payload); err != nil {
		c.logger.Debug("Failed to send candidate", log.String("peer", l.peerID), log.Error(err))
	}
}

func (c *Coordinator) onConnectionState(l *link, state webrtc.PeerConnectionState) {
	c.logger.Debug("Connection state",
		log.String("peer", l.peerID),
		log.String("state", state.String()))

	switch state {
	case webrtc.PeerConnectionStateConnected:
		prev := l.setPhase(peer.PhaseActive)
		if prev == peer.PhaseActive || prev == peer.PhaseClosed {
			return
		}
		if c.current(l) {
			c.sched.Disarm(l.peerID)
		}
		linksActive.Add(c.ctx, 1)
		negotiationSeconds.Record(c.ctx, c.clock.Since(l.created).Seconds(),
			metric.WithAttributes(attribute.String("direction", string(l.dir))))
		c.logger.Info("Link active", log.String("peer", l.peerID), log.String("role", string(l.role)))
	case webrtc.PeerConnectionStateFailed:
		c.teardown(l, closeFailed)
		l.w.stop(nil)
	case webrtc.PeerConnectionStateClosed:
		c.teardown(l, closeRemote)
		l.w.stop(nil)
	}
}

func decodeDescription(raw json.RawMessage, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, errors.Wrap(ErrBadDescription, err, "decode session description")
	}
	if desc.Type != want {
		return desc, errors.Newf(ErrBadDescription, "expected %s, got %s", want, desc.Type)
	}
	if desc.SDP == "" {
		return desc, errors.New(ErrBadDescription, "empty sdp")
	}
	return desc, nil
}
