package gossipsim

// queue.go holds the tick-indexed multimap of pending deliveries.  Entries
// at one tick keep their insertion order; a tick's entries are removed as a
// whole when the tick engine drains them.

import (
	"golang.org/x/exp/slices"
)

// delivery is one message in flight
type delivery struct {
	sender    AgentID
	recipient Agent
	payload   []byte
	sentAt    int64 // tick the message was enqueued
}

type eventQueue struct {
	byTick map[int64][]delivery
	count  int
}

func createEventQueue() *eventQueue {
	eq := new(eventQueue)
	eq.byTick = make(map[int64][]delivery)
	return eq
}

// push appends d to the list of deliveries due at tick
func (eq *eventQueue) push(tick int64, d delivery) {
	eq.byTick[tick] = append(eq.byTick[tick], d)
	eq.count += 1
}

// drain removes and returns everything due at tick, in insertion order
func (eq *eventQueue) drain(tick int64) []delivery {
	due, present := eq.byTick[tick]
	if !present {
		return nil
	}
	delete(eq.byTick, tick)
	eq.count -= len(due)
	return due
}

// len is the number of deliveries in the queue, over all ticks
func (eq *eventQueue) len() int {
	return eq.count
}

// lenAt is the number of deliveries due at tick
func (eq *eventQueue) lenAt(tick int64) int {
	return len(eq.byTick[tick])
}

// ticks returns the ticks that have deliveries pending, in increasing order
func (eq *eventQueue) ticks() []int64 {
	rtn := make([]int64, 0, len(eq.byTick))
	for tick := range eq.byTick {
		rtn = append(rtn, tick)
	}
	slices.Sort(rtn)
	return rtn
}
