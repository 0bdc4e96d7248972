package section

import (
	"slices"

	"github.com/samber/lo"
)

// deadlockRecord 死锁记录：other在stretch上逆向行驶时本车不得进入入口区段
type deadlockRecord struct {
	other   int32
	stretch []int32
}

// RegisterDeadlock 登记死锁
// 参数：entry-train进入共用区间的第一个区段，stretch-共用区间的全部区段
func (m *SectionManager) RegisterDeadlock(entry int32, train, other int32, stretch []int32) {
	trains, ok := m.deadlocks[entry]
	if !ok {
		trains = make(map[int32][]deadlockRecord)
		m.deadlocks[entry] = trains
	}
	for _, r := range trains[train] {
		if r.other == other {
			return
		}
	}
	trains[train] = append(trains[train], deadlockRecord{other: other, stretch: slices.Clone(stretch)})
}

// DeadlockConflicts 查询死锁冲突
// 功能：train进入entry时，登记的对向列车中已占用或预留共用区间的那些
// 返回：冲突列车（升序）
func (m *SectionManager) DeadlockConflicts(entry int32, train int32) []int32 {
	res := make([]int32, 0)
	for _, r := range m.deadlocks[entry][train] {
		if lo.ContainsBy(r.stretch, func(idx int32) bool {
			s := m.data[idx]
			return s.reservedBy == r.other || s.isOccupiedBy(r.other)
		}) {
			res = append(res, r.other)
		}
	}
	slices.Sort(res)
	return res
}

// RemoveDeadlocks 删除列车相关的全部死锁记录
func (m *SectionManager) RemoveDeadlocks(train int32) {
	for entry, trains := range m.deadlocks {
		delete(trains, train)
		for t, records := range trains {
			trains[t] = slices.DeleteFunc(records, func(r deadlockRecord) bool {
				return r.other == train
			})
			if len(trains[t]) == 0 {
				delete(trains, t)
			}
		}
		if len(trains) == 0 {
			delete(m.deadlocks, entry)
		}
	}
}
