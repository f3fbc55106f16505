package model

import (
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

type NotificationType int32

const (
	// NotificationBlockAdded fires for every block that extends the best
	// chain, including the blocks applied during a reorganization.
	NotificationBlockAdded NotificationType = iota

	// NotificationReorg fires once per chain switch, carrying the new tip.
	NotificationReorg

	// NotificationBlockInvalidated fires when a block is marked invalid and
	// the chain moved away from it.
	NotificationBlockInvalidated
)

func (t NotificationType) String() string {
	switch t {
	case NotificationBlockAdded:
		return "BlockAdded"
	case NotificationReorg:
		return "Reorg"
	case NotificationBlockInvalidated:
		return "BlockInvalidated"
	default:
		return fmt.Sprintf("NotificationType(%d)", int32(t))
	}
}

type Notification struct {
	Type   NotificationType
	Hash   *chainhash.Hash
	Height uint32
}

func (n *Notification) String() string {
	return fmt.Sprintf("%s %s at height %d", n.Type, n.Hash, n.Height)
}
