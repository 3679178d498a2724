package reb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/dtaskrt/dtaskrt/cmn"
	"github.com/dtaskrt/dtaskrt/transport"
)

// Migration tags are fixed and reserved, outside the MakeUniqueTag space
// point-to-point traffic uses (spec §4.7): meta (size/index/parent) goes
// first on one tag, the payload follows on a second once the receiver
// knows how big a buffer to allocate.
const (
	metaTag = 444
	dataTag = 445
)

// OutgoingMigration describes one element this rank is handing to another
// rank as part of a rebalance (spec §4.7 "migration").
type OutgoingMigration struct {
	DestRank  int
	Index     int
	MpiParent int // -1 if this element has no MPI-side parent
	Data      []byte
}

// IncomingMigration is the mirror on the receiving side: SrcRank is filled
// in by the caller before Migrate runs (the caller already knows, from the
// new index mapping, which rank used to own each index it's about to
// receive); everything else is filled in by the meta exchange.
type IncomingMigration struct {
	SrcRank   int
	Index     int
	MpiParent int
	Data      []byte
}

// Migrate runs the two-phase migration protocol (spec §4.7): every
// outgoing element's (size, index, mpiParent) triple is sent first so
// receivers can size their buffers, then the payloads move once every
// meta exchange has completed.
func Migrate(ctx context.Context, tr transport.Transport, outgoing []OutgoingMigration, incoming []IncomingMigration) error {
	sendMetaReqs := make([]transport.Request, len(outgoing))
	sendDataReqs := make([]transport.Request, len(outgoing))
	sendMetaBufs := make([][]int32, len(outgoing))

	for i, m := range outgoing {
		buf := []int32{int32(len(m.Data)), int32(m.Index), int32(m.MpiParent)}
		sendMetaBufs[i] = buf
		req, err := tr.Isend(ctx, m.DestRank, metaTag, int32sToBytes(buf))
		if err != nil {
			return errors.Wrapf(err, "migrate: isend meta for index %d to rank %d", m.Index, m.DestRank)
		}
		sendMetaReqs[i] = req

		req, err = tr.Isend(ctx, m.DestRank, dataTag, m.Data)
		if err != nil {
			return errors.Wrapf(err, "migrate: isend data for index %d to rank %d", m.Index, m.DestRank)
		}
		sendDataReqs[i] = req
	}

	recvMetaReqs := make([]transport.Request, len(incoming))
	recvMetaBufs := make([][]byte, len(incoming))
	for i, m := range incoming {
		buf := make([]byte, 12)
		req, err := tr.Irecv(ctx, m.SrcRank, metaTag, buf)
		if err != nil {
			return errors.Wrapf(err, "migrate: irecv meta from rank %d", m.SrcRank)
		}
		recvMetaReqs[i] = req
		recvMetaBufs[i] = buf
	}

	if err := tr.WaitAll(ctx, sendMetaReqs); err != nil {
		return errors.Wrap(err, "migrate: waitall on outgoing meta")
	}
	if err := tr.WaitAll(ctx, recvMetaReqs); err != nil {
		return errors.Wrap(err, "migrate: waitall on incoming meta")
	}

	recvDataReqs := make([]transport.Request, len(incoming))
	for i := range incoming {
		fields := bytesToInt32s(recvMetaBufs[i])
		size, index, parent := int(fields[0]), int(fields[1]), int(fields[2])
		incoming[i].Index = index
		incoming[i].MpiParent = parent
		incoming[i].Data = make([]byte, size)

		req, err := tr.Irecv(ctx, incoming[i].SrcRank, dataTag, incoming[i].Data)
		if err != nil {
			return errors.Wrapf(err, "migrate: irecv data for index %d from rank %d", index, incoming[i].SrcRank)
		}
		recvDataReqs[i] = req
	}

	if err := tr.WaitAll(ctx, recvDataReqs); err != nil {
		return errors.Wrap(err, "migrate: waitall on incoming data")
	}
	if err := tr.WaitAll(ctx, sendDataReqs); err != nil {
		return errors.Wrap(err, "migrate: waitall on outgoing data")
	}
	return nil
}

func int32sToBytes(in []int32) []byte {
	out := make([]byte, len(in)*4)
	for i, v := range in {
		u := uint32(v)
		out[i*4] = byte(u)
		out[i*4+1] = byte(u >> 8)
		out[i*4+2] = byte(u >> 16)
		out[i*4+3] = byte(u >> 24)
	}
	return out
}

func bytesToInt32s(in []byte) []int32 {
	cmn.AssertMsg(len(in)%4 == 0, "int32 migration-meta buffer length must be a multiple of 4")
	out := make([]int32, len(in)/4)
	for i := range out {
		u := uint32(in[i*4]) | uint32(in[i*4+1])<<8 | uint32(in[i*4+2])<<16 | uint32(in[i*4+3])<<24
		out[i] = int32(u)
	}
	return out
}
