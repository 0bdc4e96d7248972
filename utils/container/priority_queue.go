package container

import (
	"cmp"
	"container/heap"
	"slices"
)

// item 优先队列中单个元素
type item[T any] struct {
	Value    T       // 元素的值（任意类型）
	Priority float64 // 元素在队列中的优先级（越小越优先）
	seq      uint64  // 入队序号，优先级相同时先入先出
	index    int     // 项在堆中的索引，由heap.Interface方法维护
}

// priorityQueue 实现了 heap.Interface 的最小堆
type priorityQueue[T any] []*item[T]

func (pq priorityQueue[T]) Len() int { return len(pq) }

// Less 优先级小者优先，相同优先级按入队顺序，保证出队顺序确定
func (pq priorityQueue[T]) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority < pq[j].Priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue[T]) Push(x any) {
	it := x.(*item[T])
	it.index = len(*pq)
	*pq = append(*pq, it)
}

func (pq *priorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // 避免内存泄漏
	it.index = -1
	*pq = old[0 : n-1]
	return it
}

// PriorityQueue 优先队列
// 功能：按优先级（如计划发车时间）排序的确定性队列
type PriorityQueue[T any] struct {
	queue priorityQueue[T] // 内部优先队列实现
	seq   uint64
}

// NewPriorityQueue 创建优先队列
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{queue: make(priorityQueue[T], 0)}
}

// Len 获取当前队列长度
func (q *PriorityQueue[T]) Len() int {
	return len(q.queue)
}

// First 获取优先级数值最小的元素（不出队）
func (q *PriorityQueue[T]) First() (T, float64) {
	return q.queue[0].Value, q.queue[0].Priority
}

// HeapPush 加入元素并维护堆结构
func (q *PriorityQueue[T]) HeapPush(value T, priority float64) {
	q.seq++
	heap.Push(&q.queue, &item[T]{
		Value:    value,
		Priority: priority,
		seq:      q.seq,
	})
}

// HeapPop 弹出优先级数值最小的元素
func (q *PriorityQueue[T]) HeapPop() (value T, priority float64) {
	it := heap.Pop(&q.queue).(*item[T])
	return it.Value, it.Priority
}

// Values 按堆内顺序返回所有元素（非排序）
func (q *PriorityQueue[T]) Values() []T {
	res := make([]T, len(q.queue))
	for i, it := range q.queue {
		res[i] = it.Value
	}
	return res
}

// RemoveFunc 删除所有满足条件的元素
// 返回：被删除的元素个数
func (q *PriorityQueue[T]) RemoveFunc(match func(T) bool) int {
	kept := q.queue[:0]
	n := 0
	for _, it := range q.queue {
		if match(it.Value) {
			n++
			continue
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(q.queue); i++ {
		q.queue[i] = nil
	}
	q.queue = kept
	for i, it := range q.queue {
		it.index = i
	}
	heap.Init(&q.queue)
	return n
}

// Entry 队列元素及其优先级
type Entry[T any] struct {
	Value    T
	Priority float64
}

// Entries 按出队顺序返回所有元素及优先级（不出队）
func (q *PriorityQueue[T]) Entries() []Entry[T] {
	items := slices.Clone(q.queue)
	slices.SortFunc(items, func(a, b *item[T]) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	res := make([]Entry[T], len(items))
	for i, it := range items {
		res[i] = Entry[T]{Value: it.Value, Priority: it.Priority}
	}
	return res
}
