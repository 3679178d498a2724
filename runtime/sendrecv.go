package runtime

import (
	"context"

	"github.com/dtaskrt/dtaskrt/cmn"
	"github.com/dtaskrt/dtaskrt/coll"
	"github.com/dtaskrt/dtaskrt/sched"
	"github.com/dtaskrt/dtaskrt/transport"
)

// Accessor is the user-supplied triple over an element type T (spec
// glossary): the runtime's only view of serialization. Out of scope to
// implement here - the front-end owns every concrete Accessor - but every
// send/recv path below is built purely in terms of this interface.
type Accessor[T any] interface {
	ComputeSize(e *T) int
	Pack(e *T, buf []byte)
	Unpack(e *T, buf []byte)
}

// MakeSendOp serializes the element at localIndex with acc and posts a
// non-blocking send to remoteRank under the tag computed from c's id and
// both sides' rank-unique ids (spec §4.5 make_send_op): allocate a
// request id, post Isend, install a PendingSend listener that owns the
// buffer until completion. Sending an element with no parent collection
// is a fatal invalid-front-end-contract error (spec §7).
func MakeSendOp[T any](ctx context.Context, m *Manager, c *coll.Collection[T], acc Accessor[T], localIndex, remoteIndex, remoteRank int) (int, error) {
	e, ok := c.GetElement(localIndex)
	cmn.AssertMsg(ok, "sending object with no parent collection")

	buf := make([]byte, acc.ComputeSize(e))
	acc.Pack(e, buf)

	local := c.GetIndexInfo(localIndex)
	remote := c.GetIndexInfo(remoteIndex)
	tag := transport.MakeUniqueTag(c.ID(), remote.RankUniqueID, local.RankUniqueID, 0)
	return m.engine.PostSend(ctx, remoteRank, tag, buf)
}

// MakeActiveSendOp is make_send_op's active-message sibling (spec §4.5
// make_active_send_op): the tag carries the taskId of a pre-registered
// receive generator instead of taskId 0, so no matching add_pending_recv
// is required on the sender's side - the receiver fabricates its own
// pending-recv via generator lookup on probe (spec §4.3 (ii)). genKey
// identifies the (Accessor, T, Index) triple for RegisterGeneratorOnce;
// gen is only actually registered the first time genKey is seen.
func MakeActiveSendOp[T any](ctx context.Context, m *Manager, acc Accessor[T], e *T, collID, remoteRankUniqueID, remoteRank int, genKey string, gen sched.Generator) (int, error) {
	taskID := m.RegisterGeneratorOnce(genKey, gen)

	buf := make([]byte, acc.ComputeSize(e))
	acc.Pack(e, buf)

	tag := transport.MakeUniqueTag(collID, remoteRankUniqueID, 0, taskID)
	return m.engine.PostSend(ctx, remoteRank, tag, buf)
}

// MakeRecvOp constructs a non-local pending-recv bound to acc and calls
// add_pending_recv (spec §4.5 make_recv_op): it allocates the destination
// element via EmplaceNew if one doesn't already exist at localIndex, so a
// subsequent Finalize only ever has to unpack into live storage. Returns
// the request id, whose slot already holds the pending-recv as listener;
// RegisterDependency treats an occupied slot as an invariant violation, so
// this id cannot be folded into a task's dependencies.
func MakeRecvOp[T any](m *Manager, c *coll.Collection[T], acc Accessor[T], localIndex, remoteIndex, remoteRank int) int {
	e, ok := c.GetElement(localIndex)
	if !ok {
		e = c.EmplaceNew(localIndex)
	}

	local := c.GetIndexInfo(localIndex)
	remote := c.GetIndexInfo(remoteIndex)
	p := sched.NewPendingRecv(func(buf []byte) { acc.Unpack(e, buf) })
	return m.engine.AddPendingRecv(c.ID(), local, remote, remoteRank, p)
}

// ActiveRecvGenerator wraps Acc as a sched.Generator that
// fabricates a fresh element at dstID via newElem and unpacks into it on
// arrival - the receive-side half of an active message (spec §4.3 (ii)):
// "the generator fabricates the receiver object on the fly, using dstId
// and collId from the tag".
type ActiveRecvGenerator[T any] struct {
	Acc     Accessor[T]
	NewElem func(dstID, collID int) *T
}

func (g *ActiveRecvGenerator[T]) Generate(dstID, collID int) sched.PendingRecv {
	e := g.NewElem(dstID, collID)
	return sched.NewPendingRecv(func(buf []byte) { g.Acc.Unpack(e, buf) })
}
