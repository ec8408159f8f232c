package game

import "twin-siege/internal/protocol"

// Transfer hands an escaped projectile to the opposing team
type Transfer struct {
	ID protocol.ProjectileID
	X  uint32
}

// NoticeKind classifies messages on the notice mailbox
type NoticeKind uint8

const (
	// NoticeHit tells the firing team one of its projectiles hit the peer base
	NoticeHit NoticeKind = iota
	// NoticeVictory claims the match after reaching end-score
	NoticeVictory
	// NoticeConcede acknowledges a victory claim
	NoticeConcede
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeHit:
		return "hit"
	case NoticeVictory:
		return "victory"
	case NoticeConcede:
		return "concede"
	default:
		return "unknown"
	}
}

// Notice is a score or outcome message between teams
type Notice struct {
	Kind NoticeKind
}

// outcomeNotice reports whether the notice drives the win/loss exchange
func (n Notice) outcomeNotice() bool {
	return n.Kind == NoticeVictory || n.Kind == NoticeConcede
}

// Link is one team's end of the relay: two inbound mailboxes it drains and
// two outbound mailboxes owned by the peer.
type Link struct {
	Transfers <-chan Transfer
	Notices   <-chan Notice

	sendTransfers chan<- Transfer
	sendNotices   chan<- Notice
}

// NewRelay creates the cross-linked pair of links for a match. Every mailbox
// holds at most capacity messages; sends block while it is full.
func NewRelay(capacity int) (*Link, *Link) {
	if capacity < 1 {
		capacity = 1
	}
	aTransfers := make(chan Transfer, capacity)
	aNotices := make(chan Notice, capacity)
	bTransfers := make(chan Transfer, capacity)
	bNotices := make(chan Notice, capacity)

	a := &Link{
		Transfers:     aTransfers,
		Notices:       aNotices,
		sendTransfers: bTransfers,
		sendNotices:   bNotices,
	}
	b := &Link{
		Transfers:     bTransfers,
		Notices:       bNotices,
		sendTransfers: aTransfers,
		sendNotices:   aNotices,
	}
	return a, b
}

// Outbox collects relay messages produced under the team lock, to be sent
// after it is released
type Outbox struct {
	Transfers []Transfer
	Notices   []Notice
}

// Empty reports whether nothing is waiting to be sent
func (o *Outbox) Empty() bool {
	return len(o.Transfers) == 0 && len(o.Notices) == 0
}

func (o *Outbox) merge(other Outbox) {
	o.Transfers = append(o.Transfers, other.Transfers...)
	o.Notices = append(o.Notices, other.Notices...)
}

// discardGameplay drops transfers and hit notices, keeping outcome notices
func (o *Outbox) discardGameplay() {
	o.Transfers = o.Transfers[:0]
	kept := o.Notices[:0]
	for _, n := range o.Notices {
		if n.outcomeNotice() {
			kept = append(kept, n)
		}
	}
	o.Notices = kept
}
