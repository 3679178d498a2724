package transport

import "github.com/dtaskrt/dtaskrt/cmn"

// Tag field widths, bit-exact per spec §3: a single reserved bit, 8 bits of
// collection id, 9 bits each of destination/source rank-unique id, 4 bits
// of active-message task id, one trailing reserved bit. Total 32 bits,
// matching the teacher's C TagMaker bitfield packed into a plain int.
const (
	collIDBits = 8
	dstIDBits  = 9
	srcIDBits  = 9
	taskIDBits = 4

	collIDMax = 1<<collIDBits - 1
	dstIDMax  = 1<<dstIDBits - 1
	srcIDMax  = 1<<srcIDBits - 1
	taskIDMax = 1<<taskIDBits - 1

	taskIDShift = 1
	srcIDShift  = taskIDShift + taskIDBits
	dstIDShift  = srcIDShift + srcIDBits
	collIDShift = dstIDShift + dstIDBits
)

// MakeUniqueTag packs (collId, dstId, srcId, taskId) into the single small
// integer used as the transport tag. taskId==0 means an ordinary
// point-to-point message; non-zero identifies the active-message generator
// that should unpack it (spec §3/§4.1).
func MakeUniqueTag(collID, dstID, srcID, taskID int) int {
	cmn.AssertMsg(collID >= 0 && collID <= collIDMax, "collId out of range for tag field")
	cmn.AssertMsg(dstID >= 0 && dstID <= dstIDMax, "dstId out of range for tag field")
	cmn.AssertMsg(srcID >= 0 && srcID <= srcIDMax, "srcId out of range for tag field")
	cmn.AssertMsg(taskID >= 0 && taskID <= taskIDMax, "taskId out of range for tag field")

	tag := 0
	tag |= taskID << taskIDShift
	tag |= srcID << srcIDShift
	tag |= dstID << dstIDShift
	tag |= collID << collIDShift
	return tag
}

// DecodeTag is the exact inverse of MakeUniqueTag (spec invariant I2).
func DecodeTag(tag int) (collID, dstID, srcID, taskID int) {
	taskID = (tag >> taskIDShift) & taskIDMax
	srcID = (tag >> srcIDShift) & srcIDMax
	dstID = (tag >> dstIDShift) & dstIDMax
	collID = (tag >> collIDShift) & collIDMax
	return
}
