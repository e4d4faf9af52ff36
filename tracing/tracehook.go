package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/simmem/mem/simmem"
	"github.com/sarchlab/simmem/sim/hooking"
	"github.com/sarchlab/simmem/sim/naming"
	"github.com/sarchlab/simmem/sim/timing"
)

// NamedHookable is a hookable element with a name.
type NamedHookable interface {
	naming.Named
	hooking.Hookable
}

// CollectTrace lets the tracer collect the tasks of an emulator.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(NewTraceHook(domain.Name(), tracer))
}

type liveKey struct {
	kind       simmem.Kind
	internalID int
}

// A traceHook converts emulator hook positions into tasks.
type traceHook struct {
	where string
	t     Tracer
	live  map[liveKey]string
}

// NewTraceHook creates a hook that reports the tasks of the emulator named
// where to the tracer.
func NewTraceHook(where string, tracer Tracer) hooking.Hook {
	return &traceHook{
		where: where,
		t:     tracer,
		live:  make(map[liveKey]string),
	}
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case simmem.HookPosAddrAccepted:
		h.accepted(ctx.Item.(*simmem.Transaction))
	case simmem.HookPosElementServiced:
		h.serviced(ctx.Item.(simmem.Element), ctx.Detail.(timing.VTimeInCycle))
	case simmem.HookPosElementDone:
		h.done(ctx.Item.(simmem.Element), ctx.Detail.(timing.VTimeInCycle))
	case simmem.HookPosRspReleased:
		h.released(ctx.Item.(*simmem.Transaction), ctx.Detail.(simmem.Release))
	}
}

func (h *traceHook) accepted(txn *simmem.Transaction) {
	h.live[liveKey{txn.Kind, txn.InternalID}] = txn.ID.String()

	h.t.StartTask(Task{
		ID:        txn.ID.String(),
		Kind:      txn.Kind.String(),
		What:      fmt.Sprintf("id%d@%#x", txn.AXIID, txn.Addr),
		Where:     h.where,
		StartTime: txn.AcceptedAt,
		Detail:    txn,
	})
}

func (h *traceHook) serviced(e simmem.Element, now timing.VTimeInCycle) {
	parent, ok := h.live[liveKey{e.Kind, e.InternalID}]
	if !ok {
		return
	}

	h.t.StartTask(Task{
		ID:        elementTaskID(parent, e.Index),
		ParentID:  parent,
		Kind:      KindElement,
		What:      e.Category.String(),
		Where:     h.where,
		StartTime: now,
		Detail:    e,
	})
}

func (h *traceHook) done(e simmem.Element, now timing.VTimeInCycle) {
	parent, ok := h.live[liveKey{e.Kind, e.InternalID}]
	if !ok {
		return
	}

	h.t.EndTask(Task{
		ID:      elementTaskID(parent, e.Index),
		EndTime: now,
	})
}

func (h *traceHook) released(txn *simmem.Transaction, rel simmem.Release) {
	task := Task{
		ID:      txn.ID.String(),
		EndTime: rel.At,
		Detail:  rel,
	}

	if !rel.Last {
		h.t.StepTask(task)
		return
	}

	delete(h.live, liveKey{txn.Kind, txn.InternalID})
	h.t.EndTask(task)
}

func elementTaskID(parent string, index int) string {
	return fmt.Sprintf("%s.%d", parent, index)
}
