package delivery

import (
	"sync"

	"gopkg.in/eapache/queue.v1"
)

// packetQueue is a FIFO of addressed packets guarded by its own mutex.
type packetQueue struct {
	mutex sync.Mutex
	queue *queue.Queue
}

func newPacketQueue() *packetQueue {
	return &packetQueue{
		queue: queue.New(),
	}
}

func (q *packetQueue) add(item queued) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.queue.Add(item)
}

func (q *packetQueue) addAll(items []queued) {
	if len(items) == 0 {
		return
	}
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for _, item := range items {
		q.queue.Add(item)
	}
}

// drain empties the queue and returns its items in insertion order.
func (q *packetQueue) drain() []queued {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	items := make([]queued, 0, q.queue.Length())
	for q.queue.Length() > 0 {
		items = append(items, q.queue.Remove().(queued))
	}
	return items
}

func (q *packetQueue) len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.queue.Length()
}

// queued is an addressed packet waiting in a queue. attempts counts the
// transmissions that already happened.
type queued struct {
	AddressedPacket
	attempts int
}
