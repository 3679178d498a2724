package reb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/dtaskrt/dtaskrt/cmn"
	"github.com/dtaskrt/dtaskrt/cmn/nlog"
	"github.com/dtaskrt/dtaskrt/transport"
)

// Result is what a completed balance pass reports back to the caller, the
// fields the spec's literal scenarios (S1-S3) assert on directly.
type Result struct {
	Config          []TaskWeight
	Tries           int
	MaxDiffFraction float64
}

// Balance runs the outer balance loop (spec §4.6): measure global
// work via AllReducePerf, stop once the imbalance fraction drops below
// DiffCutoff or the try budget is spent or two successive tries produce
// the identical imbalance (a "floyd hole" once give/take is already
// enabled), otherwise sort by weight and run one pairwise comm-split
// exchange.
func Balance(ctx context.Context, tr transport.Transport, cfg cmn.BalanceConfig, initial []TaskWeight) (Result, error) {
	oldConfig := append([]TaskWeight(nil), initial...)

	var lastImbalance uint64
	allowTrades := true
	allowGiveTake := false

	for try := 0; ; try++ {
		if try >= cfg.MaxTries {
			return Result{Config: oldConfig, Tries: try}, nil
		}

		var localWork uint64
		for _, w := range oldConfig {
			localWork += w.Weight
		}

		local := transport.PerfCtrReduce{
			Total:         localWork,
			Max:           localWork,
			Min:           localWork,
			MaxLocalTasks: uint64(len(oldConfig)),
		}
		global, err := tr.AllReducePerf(ctx, local)
		if err != nil {
			return Result{}, errors.Wrap(err, "balance: all-reduce of perf counters")
		}

		perfBalance := global.Total / uint64(tr.Size())

		var newImbalance uint64
		if perfBalance-global.Min > global.Max-perfBalance {
			newImbalance = perfBalance - global.Min
		} else {
			newImbalance = global.Max - perfBalance
		}
		if newImbalance == lastImbalance {
			if allowGiveTake {
				return Result{Config: oldConfig, Tries: try}, nil
			}
			allowGiveTake = true
		}
		lastImbalance = newImbalance

		maxDiff := global.Max - global.Min
		maxDiffFraction := float64(maxDiff) / float64(perfBalance)
		if maxDiffFraction < cfg.DiffCutoff {
			return Result{Config: oldConfig, Tries: try, MaxDiffFraction: maxDiffFraction}, nil
		}

		allowGiveTake = allowGiveTake || try >= 2
		sortByWeight(oldConfig)

		newConfig, err := runBalancerStep(ctx, tr, cfg, oldConfig, localWork, allowTrades, allowGiveTake)
		if err != nil {
			return Result{}, err
		}
		oldConfig = newConfig
	}
}

// runBalancerStep is one pairwise exchange (spec §4.6): split the
// communicator (color 0, key localWork/1000 so ranks order by load), pair
// rank r with N-1-r in that ordering, swap full configs, then trade or
// give/take depending on who has more work and how the task counts
// compare.
func runBalancerStep(ctx context.Context, tr transport.Transport, cfg cmn.BalanceConfig, localConfig []TaskWeight, localWork uint64, allowTrades, allowGiveTake bool) ([]TaskWeight, error) {
	comm, err := tr.CommSplit(ctx, 0, int(localWork/1000))
	if err != nil {
		return nil, errors.Wrap(err, "balance: comm-split for pairwise exchange")
	}
	defer comm.Free()

	balanceRank := comm.Rank()
	balanceSize := comm.Size()
	partner := balanceSize - 1 - balanceRank

	if partner == balanceRank {
		return localConfig, nil
	}

	sendBuf := encodeTaskWeights(localConfig)
	recvBuf, err := comm.SendRecv(ctx, partner, sendBuf)
	if err != nil {
		return nil, errors.Wrapf(err, "balance: send/recv config with partner rank %d", partner)
	}
	incomingConfig := decodeTaskWeights(recvBuf)

	var partnerTotalWork uint64
	for _, w := range incomingConfig {
		partnerTotalWork += w.Weight
	}

	numLocalTasks := len(localConfig)
	numPartnerTasks := len(incomingConfig)

	nlog.FastV(4, nlog.SmoduleReb).Infof("balance rank=%d partner=%d local=%d(%d tasks) partner=%d(%d tasks)",
		balanceRank, partner, localWork, numLocalTasks, partnerTotalWork, numPartnerTasks)

	switch {
	case localWork < partnerTotalWork:
		desiredDelta := (partnerTotalWork - localWork) / 2
		localConfig = lessWorkHere(cfg, desiredDelta, localConfig, incomingConfig, numLocalTasks, numPartnerTasks, allowTrades, allowGiveTake)
	case localWork > partnerTotalWork:
		desiredDelta := (localWork - partnerTotalWork) / 2
		localConfig = moreWorkHere(cfg, desiredDelta, localConfig, incomingConfig, numLocalTasks, numPartnerTasks, allowTrades, allowGiveTake)
	}

	return localConfig, nil
}

// lessWorkHere handles the local-work-is-smaller branch: trade a big
// incoming task for a small local one if that helps, otherwise (if
// give/take is enabled) pull tasks in from the partner's incoming config.
func lessWorkHere(cfg cmn.BalanceConfig, desiredDelta uint64, localConfig, incomingConfig []TaskWeight, numLocalTasks, numPartnerTasks int, allowTrades, allowGiveTake bool) []TaskWeight {
	minCloseness := uint64(float64(desiredDelta) * cfg.TradeSuccessFraction)
	minExchangeCloseness := uint64(float64(desiredDelta) * cfg.TradeApplyFraction)
	exchangeFailed := true

	if numLocalTasks >= numPartnerTasks && allowTrades && len(incomingConfig) > 0 && len(localConfig) > 0 {
		bigIdx, smallIdx, closeness := TradeTasks(desiredDelta, incomingConfig, localConfig)
		if closeness < minExchangeCloseness {
			localConfig[smallIdx] = incomingConfig[bigIdx]
		}
		exchangeFailed = closeness > minCloseness
	}

	if exchangeFailed && allowGiveTake {
		for _, idx := range TakeTasks(desiredDelta, incomingConfig) {
			localConfig = append(localConfig, incomingConfig[idx])
		}
	}
	return localConfig
}

// moreWorkHere is the symmetric local-work-is-bigger branch: trade a big
// local task for a small incoming one, otherwise give local tasks away.
func moreWorkHere(cfg cmn.BalanceConfig, desiredDelta uint64, localConfig, incomingConfig []TaskWeight, numLocalTasks, numPartnerTasks int, allowTrades, allowGiveTake bool) []TaskWeight {
	minCloseness := uint64(float64(desiredDelta) * cfg.TradeSuccessFraction)
	minExchangeCloseness := uint64(float64(desiredDelta) * cfg.TradeApplyFraction)
	exchangeFailed := true

	if numPartnerTasks >= numLocalTasks && allowTrades && len(localConfig) > 0 && len(incomingConfig) > 0 {
		bigIdx, smallIdx, closeness := TradeTasks(desiredDelta, localConfig, incomingConfig)
		if closeness < minExchangeCloseness {
			localConfig[bigIdx] = incomingConfig[smallIdx]
		}
		exchangeFailed = closeness > minCloseness
	}

	if exchangeFailed && allowGiveTake {
		taken := TakeTasks(desiredDelta, localConfig)
		for i := len(taken) - 1; i >= 0; i-- {
			idx := taken[i]
			last := len(localConfig) - 1
			localConfig[idx] = localConfig[last]
			localConfig = localConfig[:last]
		}
	}
	return localConfig
}

func encodeTaskWeights(ws []TaskWeight) []uint64 {
	out := make([]uint64, 0, len(ws)*2)
	for _, w := range ws {
		out = append(out, w.Weight, uint64(w.Index))
	}
	return out
}

func decodeTaskWeights(buf []uint64) []TaskWeight {
	cmn.AssertMsg(len(buf)%2 == 0, "task weight wire buffer must hold whole pairs")
	out := make([]TaskWeight, len(buf)/2)
	for i := range out {
		out[i] = TaskWeight{Weight: buf[i*2], Index: int(buf[i*2+1])}
	}
	return out
}
