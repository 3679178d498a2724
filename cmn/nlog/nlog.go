// Package nlog is the task-runtime's leveled-logging facade. It mirrors the
// call surface of the teacher's 3rdparty/glog (Infof/Warningf/Errorf/FastV)
// so call sites read the same, but is backed by logrus - the structured
// logger used elsewhere across the retrieved pack - instead of a vendored
// glog fork.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"github.com/sirupsen/logrus"
)

// Smodule groups verbose-logging gates by subsystem, the way glog.SmoduleReb
// and glog.SmoduleTransport scope the teacher's -v flags.
type Smodule string

const (
	SmoduleSched     Smodule = "sched"
	SmoduleTransport Smodule = "transport"
	SmoduleReb       Smodule = "reb"
	SmoduleRuntime   Smodule = "runtime"
)

var (
	log  = logrus.New()
	verb = map[Smodule]int{}
)

func init() {
	log.SetLevel(logrus.InfoLevel)
}

// SetVerbosity gates FastV(level, module) for the given module: any call
// whose level is <= v is emitted.
func SetVerbosity(module Smodule, v int) { verb[module] = v }

func Infof(format string, args ...interface{})    { log.Infof(format, args...) }
func Warningf(format string, args ...interface{}) { log.Warnf(format, args...) }
func Errorf(format string, args ...interface{})   { log.Errorf(format, args...) }
func Infoln(args ...interface{})                  { log.Infoln(args...) }
func Warning(args ...interface{})                 { log.Warnln(args...) }
func Error(args ...interface{})                    { log.Errorln(args...) }

// verboser is returned by FastV so call sites can write:
//
//	nlog.FastV(4, nlog.SmoduleReb).Infof("...")
type verboser bool

func (v verboser) Infof(format string, args ...interface{}) {
	if v {
		log.Infof(format, args...)
	}
}

// FastV reports whether module is gated to at least level, the same
// cheap-check idiom as glog.FastV used throughout the teacher's reb package.
func FastV(level int, module Smodule) verboser {
	return verboser(verb[module] >= level)
}
