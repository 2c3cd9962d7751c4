// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package network

import "sync"

// queue is an unbounded FIFO with a single consumer
type queue[T any] struct {
	mutex   sync.Mutex
	items   []T
	closed  bool
	dropped bool
	// signalChan holds at most one pending wakeup for the consumer
	signalChan chan struct{}
	closedChan chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		signalChan: make(chan struct{}, 1),
		closedChan: make(chan struct{}),
	}
}

// push appends an item. It returns false when the queue no longer accepts items, either
// because it was closed or because its consumer is gone
func (q *queue[T]) push(item T) bool {
	q.mutex.Lock()
	if q.closed || q.dropped {
		q.mutex.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mutex.Unlock()
	select {
	case q.signalChan <- struct{}{}:
	default:
	}
	return true
}

// pop removes the oldest item. The second return value is false when the queue is empty,
// and the third is true when it is empty and will stay empty
func (q *queue[T]) pop() (T, bool, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	var ret T
	if len(q.items) > 0 {
		ret = q.items[0]
		// Clear the reference so that the popped item can be collected
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		return ret, true, false
	}
	return ret, false, q.closed || q.dropped
}

// close stops accepting items. Items already queued can still be popped
func (q *queue[T]) close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedChan)
}

// drop marks the consumer as gone and releases any queued items
func (q *queue[T]) drop() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.dropped = true
	q.items = nil
}

func (q *queue[T]) len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}
