// Package network implements the in-process simulated transport the
// parties run over: typed per-directed-pair channels with pluggable delay
// models and omission (drop) policies, plus the message envelope shape
// shared by every protocol layer (§6 EXTERNAL INTERFACES).
package network

import "secondprice-mpc-auction/field"

// MsgType identifies the protocol-level meaning of an Envelope, matching
// the msg_type column of the message envelope table in the spec.
type MsgType string

const (
	RBCInit    MsgType = "RBC_INIT"
	RBCEcho    MsgType = "RBC_ECHO"
	RBCReady   MsgType = "RBC_READY"
	BAVote     MsgType = "BA_VOTE"
	BADecide   MsgType = "BA_DECIDE"
	CSSShare   MsgType = "CSS_SHARE"
	CSSEcho    MsgType = "CSS_ECHO"
	CSSReady   MsgType = "CSS_READY"
	CSSRecover MsgType = "CSS_RECOVER"
	CSSReveal  MsgType = "CSS_REVEAL"
	MPCOpen    MsgType = "MPC_OPEN"
	MaskShare  MsgType = "MASK_SHARE"
)

// Envelope is the single flat message type carried by the typed channel
// every protocol layer communicates over. Only the fields relevant to
// Type are meaningful; unused fields are left zero.
type Envelope struct {
	Type MsgType

	// Sender is the party that put this specific message on the wire
	// (the "immediate" sender — for RBC_ECHO/READY this differs from the
	// original dealer, carried in OriginalSender).
	Sender int

	// SessionID carries CSS/MPC session ids and ACS/BA instance keys
	// depending on Type.
	SessionID string

	// RBC-specific.
	OriginalSender int
	Tag            string
	Payload        []byte

	// BA-specific.
	Round int
	Value int

	// CSS/MASK_SHARE-specific: Point is the party ID whose share this is.
	Point int
	Share field.Element
}
