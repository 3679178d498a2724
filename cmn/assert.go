// Package cmn provides common low-level types and utilities shared by every
// package in the task-runtime: invariant assertions, the global config
// owner, and error classification for the progress engine's fatal paths.
/*
 * Copyright (c) 2018, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"fmt"
	"os"

	"github.com/dtaskrt/dtaskrt/cmn/nlog"
)

// Assert aborts the process when cond is false. Every "invariant violation"
// class of error in the runtime (listener slot in an unexpected state, tag
// not found in the pending-recv index, collection size not divisible by the
// rank count, active-message registry overflow) goes through here or Fatalf.
func Assert(cond bool) {
	if !cond {
		AssertMsg(cond, "assertion failed")
	}
}

// AssertMsg is Assert with a caller-supplied explanation.
func AssertMsg(cond bool, msg string) {
	if !cond {
		Fatalf("assertion failed: %s", msg)
	}
}

// AssertNoErr aborts if err is non-nil. Used at the transport-adapter
// boundary for construction-time failures (custom reduce op/type creation)
// that the spec classifies as fatal "transport errors".
func AssertNoErr(err error) {
	if err != nil {
		Fatalf("unexpected error: %v", err)
	}
}

// exitFunc is os.Exit in production; tests that need to observe a fatal
// path without killing the test binary swap it out.
var exitFunc = os.Exit

// Fatalf formats, logs, and aborts. There is no recoverable error class in
// this runtime: every partial failure is a programming bug, not a runtime
// condition (spec §7).
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	nlog.Errorf("FATAL: %s", msg)
	fmt.Fprintln(os.Stderr, msg)
	exitFunc(1)
}
