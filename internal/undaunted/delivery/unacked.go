package delivery

import (
	"container/heap"
	"net/netip"
	"sync"
	"time"
)

type recordKey struct {
	addr netip.AddrPort
	id   uint32
}

type item struct {
	value *SentRecord // The record; SentAt is never modified while in the heap.
	index int         // The index of the item in the heap.
}

// A priorityQueue implements heap.Interface and holds items, oldest first.
type priorityQueue []*item

// unackedRegistry holds the records of transmitted packets that have not been
// acknowledged yet, indexed by destination and id and ordered by send time.
type unackedRegistry struct {
	mutex sync.Mutex
	queue priorityQueue
	index map[recordKey]*item
}

func newUnackedRegistry() *unackedRegistry {
	pq := make(priorityQueue, 0)
	heap.Init(&pq)
	return &unackedRegistry{
		queue: pq,
		index: make(map[recordKey]*item),
	}
}

// add tracks record, replacing any record for the same destination and id.
func (r *unackedRegistry) add(record SentRecord) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := recordKey{addr: record.Address, id: record.Packet.ID}
	if existing, ok := r.index[key]; ok {
		heap.Remove(&r.queue, existing.index)
	}
	wrapper := &item{value: &record}
	heap.Push(&r.queue, wrapper)
	r.index[key] = wrapper
}

// remove untracks the record for (addr, id) and returns it.
func (r *unackedRegistry) remove(addr netip.AddrPort, id uint32) (SentRecord, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := recordKey{addr: addr, id: id}
	wrapper, ok := r.index[key]
	if !ok {
		return SentRecord{}, false
	}
	heap.Remove(&r.queue, wrapper.index)
	delete(r.index, key)
	return *wrapper.value, true
}

// expired untracks and returns every record older than timeout at now,
// oldest first.
func (r *unackedRegistry) expired(now time.Time, timeout time.Duration) []SentRecord {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var records []SentRecord
	for len(r.queue) > 0 && now.Sub(r.queue[0].value.SentAt) > timeout {
		wrapper := heap.Pop(&r.queue).(*item)
		delete(r.index, recordKey{addr: wrapper.value.Address, id: wrapper.value.Packet.ID})
		records = append(records, *wrapper.value)
	}
	return records
}

func (r *unackedRegistry) contains(addr netip.AddrPort, id uint32) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, ok := r.index[recordKey{addr: addr, id: id}]
	return ok
}

func (r *unackedRegistry) len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.queue)
}

// heap.Interface implementation

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].value.SentAt.Before(pq[j].value.SentAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*item)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}
