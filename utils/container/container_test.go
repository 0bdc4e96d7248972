package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/container"
)

type testItem struct {
	container.IncrementalItemBase
	id int
}

func newItem(id int) *testItem {
	it := &testItem{id: id}
	it.SetIndex(-1)
	return it
}

func ids(a *container.IncrementalArray[*testItem]) []int {
	res := []int{}
	for _, x := range a.Data() {
		res = append(res, x.id)
	}
	return res
}

func TestIncrementalArrayDeferred(t *testing.T) {
	a := container.NewIncrementalArray[*testItem]()
	items := []*testItem{newItem(1), newItem(2), newItem(3), newItem(4)}
	for _, it := range items {
		a.Add(it)
	}
	assert.Equal(t, 0, a.Len())
	assert.True(t, a.Pending())
	a.Prepare()
	assert.Equal(t, []int{1, 2, 3, 4}, ids(a))

	// 删除保持顺序
	a.Remove(items[1])
	a.Remove(items[1])
	a.Add(newItem(5))
	a.Prepare()
	assert.Equal(t, []int{1, 3, 4, 5}, ids(a))
	assert.Equal(t, -1, items[1].Index())
	for i, x := range a.Data() {
		assert.Equal(t, i, x.Index())
	}

	// 重复添加被忽略
	a.Add(items[0])
	a.Prepare()
	assert.Equal(t, []int{1, 3, 4, 5}, ids(a))
	assert.False(t, a.Pending())
}

func TestPriorityQueueOrder(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	q.HeapPush("c", 30)
	q.HeapPush("a", 10)
	q.HeapPush("b1", 20)
	q.HeapPush("b2", 20)
	v, p := q.First()
	assert.Equal(t, "a", v)
	assert.Equal(t, 10.0, p)

	got := []string{}
	for q.Len() > 0 {
		v, _ := q.HeapPop()
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, got)
}

func TestPriorityQueueRemoveFunc(t *testing.T) {
	q := container.NewPriorityQueue[int]()
	for i := 0; i < 6; i++ {
		q.HeapPush(i, float64(10-i))
	}
	n := q.RemoveFunc(func(v int) bool { return v%2 == 0 })
	assert.Equal(t, 3, n)
	got := []int{}
	for q.Len() > 0 {
		v, _ := q.HeapPop()
		got = append(got, v)
	}
	assert.Equal(t, []int{5, 3, 1}, got)
}

func TestPriorityQueueEntries(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	q.HeapPush("late", 50)
	q.HeapPush("x", 5)
	q.HeapPush("y", 5)
	es := q.Entries()
	assert.Equal(t, []container.Entry[string]{{"x", 5}, {"y", 5}, {"late", 50}}, es)
	assert.Equal(t, 3, q.Len())
}
