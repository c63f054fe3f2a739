package uringrt

import (
	"container/list"
	"fmt"
)

// taskKey identifies a task in the task table and a pending op in the
// driver's op table. The two key spaces are independent dense slabs;
// nothing requires them to be numerically related.
type taskKey = uint32

// scheduler is a FIFO run queue of task keys plus a membership set
// preventing duplicate enqueues. It is touched only from the worker/task
// rendezvous window (see runtime.go) and so needs no internal locking.
type scheduler struct {
	queue  *list.List
	member map[taskKey]*list.Element
}

func newScheduler() *scheduler {
	return &scheduler{
		queue:  list.New(),
		member: make(map[taskKey]*list.Element),
	}
}

// spawn inserts key at the FIFO tail. key must not already be a member;
// violating that is a programming error, so it panics.
func (s *scheduler) spawn(key taskKey) {
	if _, present := s.member[key]; present {
		panicPrecondition(fmt.Errorf("scheduler: double-spawn of task key %d", key))
	}
	s.member[key] = s.queue.PushBack(key)
}

// wake pushes key to the tail if it is not already queued; otherwise a
// no-op. Idempotent: waking an already-queued task 1000 times still only
// costs one extra poll, not 1000.
func (s *scheduler) wake(key taskKey) {
	if _, present := s.member[key]; present {
		return
	}
	s.member[key] = s.queue.PushBack(key)
}

// fetchNext pops the FIFO head, if any, clearing its membership.
func (s *scheduler) fetchNext() (taskKey, bool) {
	front := s.queue.Front()
	if front == nil {
		return 0, false
	}
	s.queue.Remove(front)
	key := front.Value.(taskKey)
	delete(s.member, key)
	return key, true
}

func (s *scheduler) len() int {
	return s.queue.Len()
}
