package app

import (
	"parley/internal/timeline"
	"parley/internal/types"
)

// StreamController owns the live SSE channel for the selected session
// and drains it into the reducer in per-tick batches, so one render
// version bump covers everything a tick consumed.
type StreamController struct {
	events           <-chan types.AgentEvent
	cancel           func()
	maxEventsPerTick int
	reducer          *timeline.Reducer
	lastSeq          int64
}

func NewStreamController(reducer *timeline.Reducer, maxEventsPerTick int) *StreamController {
	if maxEventsPerTick < 1 {
		maxEventsPerTick = 1
	}
	return &StreamController{
		maxEventsPerTick: maxEventsPerTick,
		reducer:          reducer,
	}
}

func (c *StreamController) Reducer() *timeline.Reducer {
	if c == nil {
		return nil
	}
	return c.reducer
}

func (c *StreamController) HasStream() bool {
	if c == nil {
		return false
	}
	return c.events != nil
}

func (c *StreamController) SetStream(ch <-chan types.AgentEvent, cancel func()) {
	if c == nil {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.events = ch
	c.cancel = cancel
}

// CloseStream detaches the live channel without touching reducer state,
// used when switching sessions before the replacement stream opens.
func (c *StreamController) CloseStream() {
	if c == nil {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = nil
	c.events = nil
}

// Reset drops the stream and clears the reducer for a fresh session.
func (c *StreamController) Reset() {
	if c == nil {
		return
	}
	c.CloseStream()
	c.lastSeq = 0
	if c.reducer != nil {
		c.reducer.Reset()
	}
}

// LastSeq reports the highest sequence number drained from the stream,
// so the session layer can skip already-covered events on catch-up.
func (c *StreamController) LastSeq() int64 {
	if c == nil {
		return 0
	}
	return c.lastSeq
}

// ConsumeTick drains up to maxEventsPerTick buffered events into the
// reducer. closed reports that the stream ended and was detached.
func (c *StreamController) ConsumeTick() (changed bool, closed bool) {
	if c == nil || c.events == nil {
		return false, false
	}
	var batch []types.AgentEvent
	for i := 0; i < c.maxEventsPerTick; i++ {
		select {
		case event, ok := <-c.events:
			if !ok {
				c.events = nil
				c.cancel = nil
				closed = true
				c.flush(batch)
				return len(batch) > 0, closed
			}
			batch = append(batch, event)
		default:
			c.flush(batch)
			return len(batch) > 0, closed
		}
	}
	c.flush(batch)
	return len(batch) > 0, closed
}

func (c *StreamController) flush(batch []types.AgentEvent) {
	if len(batch) == 0 {
		return
	}
	for _, event := range batch {
		if event.Seq > c.lastSeq {
			c.lastSeq = event.Seq
		}
	}
	if c.reducer != nil {
		c.reducer.ProcessBatch(batch)
	}
}
