package services

import "secondprice-mpc-auction/network"

// Broadcaster is the narrow capability every protocol-layer tracker
// (RBC/BA/CSS/MPC/...) needs from its party: send one envelope to
// everyone, or to one peer. Kept separate from the generic
// Service/ServiceContext pair below so RBC, BA, CSS etc. stay plain
// structs instead of each becoming its own generic Service[TMsg,TRes].
type Broadcaster interface {
	Broadcast(msg network.Envelope)
	Send(to int, msg network.Envelope)
}
