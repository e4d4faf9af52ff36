package simmem

import (
	"log"

	"github.com/sarchlab/simmem/sim/hooking"
)

// TxnLogger is a hook that prints a line when a transaction is accepted and
// when its last response beat leaves.
type TxnLogger struct {
	*log.Logger
}

// NewTxnLogger returns a TxnLogger that writes into the logger.
func NewTxnLogger(logger *log.Logger) *TxnLogger {
	return &TxnLogger{Logger: logger}
}

// Func writes the transaction information into the logger.
func (h *TxnLogger) Func(ctx hooking.HookCtx) {
	txn, ok := ctx.Item.(*Transaction)
	if !ok {
		return
	}

	where := ""
	if named, ok := ctx.Domain.(interface{ Name() string }); ok {
		where = named.Name()
	}

	switch ctx.Pos {
	case HookPosAddrAccepted:
		h.Printf("%d, %s, accept %s %s id=%d addr=%#x len=%d",
			txn.AcceptedAt, where, txn.Kind, txn.ID, txn.AXIID, txn.Addr,
			txn.BurstLen)
	case HookPosRspReleased:
		rel := ctx.Detail.(Release)
		if !rel.Last {
			return
		}

		h.Printf("%d, %s, release %s %s id=%d after %d cycles",
			rel.At, where, txn.Kind, txn.ID, txn.AXIID, rel.At-txn.AcceptedAt)
	}
}
