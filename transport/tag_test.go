package transport

import "testing"

// S4: encode/decode a fixed quadruple and recover the original.
func TestMakeUniqueTagScenarioS4(t *testing.T) {
	tag := MakeUniqueTag(5, 17, 3, 0)
	collID, dstID, srcID, taskID := DecodeTag(tag)
	if collID != 5 || dstID != 17 || srcID != 3 || taskID != 0 {
		t.Fatalf("decode mismatch: got (%d,%d,%d,%d)", collID, dstID, srcID, taskID)
	}
}

// I2: decoding is the exact inverse of encoding on all valid quadruples.
func TestTagRoundTripAllValid(t *testing.T) {
	for _, collID := range []int{0, 1, collIDMax / 2, collIDMax} {
		for _, dstID := range []int{0, 1, dstIDMax / 2, dstIDMax} {
			for _, srcID := range []int{0, 1, srcIDMax / 2, srcIDMax} {
				for _, taskID := range []int{0, 1, taskIDMax / 2, taskIDMax} {
					tag := MakeUniqueTag(collID, dstID, srcID, taskID)
					gc, gd, gs, gt := DecodeTag(tag)
					if gc != collID || gd != dstID || gs != srcID || gt != taskID {
						t.Fatalf("round trip failed for (%d,%d,%d,%d): got (%d,%d,%d,%d)",
							collID, dstID, srcID, taskID, gc, gd, gs, gt)
					}
				}
			}
		}
	}
}

func TestTagFieldsDoNotAlias(t *testing.T) {
	base := MakeUniqueTag(1, 1, 1, 1)
	bumpColl := MakeUniqueTag(2, 1, 1, 1)
	bumpDst := MakeUniqueTag(1, 2, 1, 1)
	bumpSrc := MakeUniqueTag(1, 1, 2, 1)
	bumpTask := MakeUniqueTag(1, 1, 1, 2)
	tags := []int{base, bumpColl, bumpDst, bumpSrc, bumpTask}
	for i := 0; i < len(tags); i++ {
		for j := i + 1; j < len(tags); j++ {
			if tags[i] == tags[j] {
				t.Fatalf("tags %d and %d collided: %d", i, j, tags[i])
			}
		}
	}
}
