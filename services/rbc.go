package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/rs/zerolog"

	"secondprice-mpc-auction/async"
	"secondprice-mpc-auction/network"
)

// rbcKey identifies one RBC instance: a designated sender broadcasting
// under a tag (§3 DATA MODEL: "RBC instance: keyed by (sender_id, tag)").
type rbcKey struct {
	Sender int
	Tag    string
}

type rbcInstance struct {
	mu sync.Mutex

	sentEcho  bool
	sentReady bool
	delivered bool

	echoSenders  map[string]map[int]bool // payload digest -> immediate senders
	readySenders map[string]map[int]bool
	payloads     map[string][]byte // digest -> payload, first-seen wins

	deliveredPayload []byte
	deliveredEvent   *async.Event
}

func newRBCInstance() *rbcInstance {
	return &rbcInstance{
		echoSenders:    make(map[string]map[int]bool),
		readySenders:   make(map[string]map[int]bool),
		payloads:       make(map[string][]byte),
		deliveredEvent: async.NewEvent(),
	}
}

func digestOf(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// RBC implements Bracha reliable broadcast of an arbitrary byte-string
// payload under a (sender, tag) instance, per §4.1. Grounded on the
// teacher's acast.go (the same ECHO/READY threshold state machine),
// generalized from a generic comparable payload keyed by a UUID to the
// spec's byte-payload-keyed-by-(sender,tag) contract, matching
// original_source/rbc.py's instance model.
type RBC struct {
	n, f, self int
	log        zerolog.Logger

	mu        sync.Mutex
	instances map[rbcKey]*rbcInstance
}

// NewRBC builds an RBC tracker for one party.
func NewRBC(self, n, f int, logger zerolog.Logger) *RBC {
	return &RBC{
		n: n, f: f, self: self,
		log:       logger.With().Str("layer", "RBC").Int("party_id", self).Logger(),
		instances: make(map[rbcKey]*rbcInstance),
	}
}

func (r *RBC) instance(key rbcKey) *rbcInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[key]
	if !ok {
		inst = newRBCInstance()
		r.instances[key] = inst
	}
	return inst
}

// Broadcast is the sender-only entry point: broadcast(tag, payload).
func (r *RBC) Broadcast(ctx Broadcaster, tag string, payload []byte) {
	r.log.Debug().Str("tag", tag).Msg("broadcasting RBC_INIT")
	ctx.Broadcast(network.Envelope{
		Type:           network.RBCInit,
		Sender:         r.self,
		OriginalSender: r.self,
		Tag:            tag,
		Payload:        payload,
	})
}

// HandleInit processes an inbound RBC_INIT: step 1 of §4.1.
func (r *RBC) HandleInit(ctx Broadcaster, env network.Envelope) {
	key := rbcKey{Sender: env.Sender, Tag: env.Tag}
	inst := r.instance(key)

	inst.mu.Lock()
	alreadyEchoed := inst.sentEcho
	if !alreadyEchoed {
		inst.sentEcho = true
	}
	inst.mu.Unlock()

	if alreadyEchoed {
		return
	}
	ctx.Broadcast(network.Envelope{
		Type:           network.RBCEcho,
		Sender:         r.self,
		OriginalSender: env.Sender,
		Tag:            env.Tag,
		Payload:        env.Payload,
	})
}

// HandleEcho processes an inbound RBC_ECHO: step 2 of §4.1.
func (r *RBC) HandleEcho(ctx Broadcaster, env network.Envelope) {
	key := rbcKey{Sender: env.OriginalSender, Tag: env.Tag}
	inst := r.instance(key)
	digest := digestOf(env.Payload)

	inst.mu.Lock()
	if inst.delivered {
		inst.mu.Unlock()
		return
	}
	if inst.echoSenders[digest] == nil {
		inst.echoSenders[digest] = make(map[int]bool)
	}
	inst.echoSenders[digest][env.Sender] = true
	inst.payloads[digest] = env.Payload
	echoCount := len(inst.echoSenders[digest])
	shouldReady := echoCount >= r.n-r.f && !inst.sentReady
	if shouldReady {
		inst.sentReady = true
	}
	inst.mu.Unlock()

	if shouldReady {
		ctx.Broadcast(network.Envelope{
			Type:           network.RBCReady,
			Sender:         r.self,
			OriginalSender: env.OriginalSender,
			Tag:            env.Tag,
			Payload:        env.Payload,
		})
	}
}

// HandleReady processes an inbound RBC_READY: amplification and delivery,
// steps 3-4 of §4.1.
func (r *RBC) HandleReady(ctx Broadcaster, env network.Envelope) {
	key := rbcKey{Sender: env.OriginalSender, Tag: env.Tag}
	inst := r.instance(key)
	digest := digestOf(env.Payload)

	inst.mu.Lock()
	if inst.delivered {
		inst.mu.Unlock()
		return
	}
	if inst.readySenders[digest] == nil {
		inst.readySenders[digest] = make(map[int]bool)
	}
	inst.readySenders[digest][env.Sender] = true
	inst.payloads[digest] = env.Payload
	readyCount := len(inst.readySenders[digest])

	shouldAmplify := readyCount >= r.f+1 && !inst.sentReady
	if shouldAmplify {
		inst.sentReady = true
	}

	shouldDeliver := readyCount >= r.n-r.f && !inst.delivered
	if shouldDeliver {
		inst.delivered = true
		inst.deliveredPayload = env.Payload
	}
	inst.mu.Unlock()

	if shouldAmplify {
		ctx.Broadcast(network.Envelope{
			Type:           network.RBCReady,
			Sender:         r.self,
			OriginalSender: env.OriginalSender,
			Tag:            env.Tag,
			Payload:        env.Payload,
		})
	}
	if shouldDeliver {
		r.log.Debug().Int("sender", env.OriginalSender).Str("tag", env.Tag).Msg("delivered")
		inst.deliveredEvent.Fire()
	}
}

// WaitDeliver blocks until the (sender, tag) instance delivers, returning
// its payload.
func (r *RBC) WaitDeliver(ctx context.Context, sender int, tag string) ([]byte, error) {
	inst := r.instance(rbcKey{Sender: sender, Tag: tag})
	if err := inst.deliveredEvent.Wait(ctx); err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.deliveredPayload, nil
}

// IsDelivered reports delivery without blocking.
func (r *RBC) IsDelivered(sender int, tag string) bool {
	inst := r.instance(rbcKey{Sender: sender, Tag: tag})
	return inst.deliveredEvent.IsSet()
}
