package app

import "parley/internal/types"

// FilterCatchUp drops events the trace snapshot already covers, keeping
// only those published after afterSeq. Events without a sequence number
// are kept; the reducer's own dedup handles any overlap they cause.
func FilterCatchUp(events []types.AgentEvent, afterSeq int64) []types.AgentEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]types.AgentEvent, 0, len(events))
	for _, event := range events {
		if event.Seq > 0 && event.Seq <= afterSeq {
			continue
		}
		out = append(out, event)
	}
	return out
}

// MaxEventSeq returns the highest sequence number carried by events, or
// zero when none carry one.
func MaxEventSeq(events []types.AgentEvent) int64 {
	var max int64
	for _, event := range events {
		if event.Seq > max {
			max = event.Seq
		}
	}
	return max
}

// ShouldRefetchTrace reports whether a cached trace snapshot is too far
// behind the server to bridge with a catch-up fetch alone.
func ShouldRefetchTrace(cachedLastSeq, serverLastSeq int64, maxGap int64) bool {
	if cachedLastSeq <= 0 {
		return true
	}
	if serverLastSeq < cachedLastSeq {
		// The server restarted or the session was rewritten.
		return true
	}
	if maxGap <= 0 {
		return false
	}
	return serverLastSeq-cachedLastSeq > maxGap
}
