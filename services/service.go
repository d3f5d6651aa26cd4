package services

// Service/ServiceContext/ServiceManager are the teacher's outer
// composition root, carried forward almost unchanged: a single message
// loop per party draining an inbox, handing each message to one
// top-level Service, and draining a backlog of produced results into an
// outbox without blocking message intake. Adapted here to (a) work over
// the shared network.Network transport (with its delay/drop machinery)
// instead of a bespoke per-package Network type, and (b) give
// ServiceContext a Send method alongside Broadcast, since CSS/MASK_SHARE
// messages are point-to-point, not broadcast.
import (
	"secondprice-mpc-auction/network"
)

// Service is the single top-level message handler a ServiceManager
// drives. In this module only Party implements it; RBC/BA/CSS/MPC are
// plain structs invoked directly from Party.OnMessage.
type Service[TMsg any, TRes any] interface {
	OnMessage(msg TMsg, ctx ServiceContext[TMsg, TRes])
}

// ServiceContext is what a Service's OnMessage gets to act on: broadcast
// or unicast an outbound message, or enqueue a final result.
type ServiceContext[TMsg any, TRes any] interface {
	Broadcast(msg TMsg)
	Send(to int, msg TMsg)
	// IMPORTANT: this is crucial thing that it is always used in OnMessage of a service
	// and should not be used in any goroutine becasuse here we do not synchronize access to awaitingMsgs
	SendResult(res TRes)
}

// ServiceManager owns the inbox/outbox pair and the message loop for one
// party, exactly like the teacher's generic manager.
type ServiceManager[TMsg any, TRes any] struct {
	self         int
	service      Service[TMsg, TRes]
	inbox        chan TMsg // For incoming messages that need to be processed
	outbox       chan TRes // For outgoing messages/results
	awaitingMsgs []TRes
	network      *network.Network[TMsg]
	stop         chan struct{}
}

// NewServiceManager builds a manager for `service`, bound to `self`'s
// identity on `net`.
func NewServiceManager[TMsg any, TRes any](self int, service Service[TMsg, TRes], net *network.Network[TMsg]) *ServiceManager[TMsg, TRes] {
	return &ServiceManager[TMsg, TRes]{
		self:         self,
		service:      service,
		inbox:        make(chan TMsg, 1000),
		outbox:       make(chan TRes, 1000),
		awaitingMsgs: make([]TRes, 0),
		network:      net,
		stop:         make(chan struct{}),
	}
}

func (sm *ServiceManager[TMsg, TRes]) Start() {
	go sm.loop()
}

func (sm *ServiceManager[TMsg, TRes]) Stop() {
	select {
	case <-sm.stop:
		// Already closed
	default:
		close(sm.stop)
	}
}

func (sm *ServiceManager[TMsg, TRes]) Result() <-chan TRes {
	return sm.outbox
}

func (sm *ServiceManager[TMsg, TRes]) Inbox() chan TMsg {
	return sm.inbox
}

func (sm *ServiceManager[TMsg, TRes]) loop() {
	for {
		if len(sm.awaitingMsgs) > 0 {
			var nextMsg = sm.awaitingMsgs[0]
			select {
			case msg := <-sm.inbox:
				sm.service.OnMessage(msg, sm)
			case sm.outbox <- nextMsg:
				sm.awaitingMsgs = sm.awaitingMsgs[1:]
			case <-sm.stop:
				return
			}
			continue
		}

		select {
		case msg := <-sm.inbox:
			sm.service.OnMessage(msg, sm)
		case <-sm.stop:
			return
		}

	}
}

// Implement ServiceContext
func (sm *ServiceManager[TMsg, TRes]) Broadcast(msg TMsg) {
	sm.network.Broadcast(sm.self, msg)
}

func (sm *ServiceManager[TMsg, TRes]) Send(to int, msg TMsg) {
	sm.network.Send(sm.self, to, msg)
}

func (sm *ServiceManager[TMsg, TRes]) SendResult(res TRes) {
	// IMPORTANT: this is crucial thing that it is always used in OnMessage of a service
	// and should not be used in any goroutine becasuse here we do not synchronize access to awaitingMsgs
	sm.awaitingMsgs = append(sm.awaitingMsgs, res)
}
