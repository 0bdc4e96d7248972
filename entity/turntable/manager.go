package turntable

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

// rotation 转向中的列车
type rotation struct {
	section   int32
	remaining float64
}

// TurntableManager 转车台管理器
// 功能：每个转车台一次只服务一趟列车，按固定耗时完成转向
type TurntableManager struct {
	ctx entity.ITaskContext

	rotateTime map[int32]float64   // 区段 -> 转向耗时
	busy       map[int32]int32     // 区段 -> 正在使用的列车
	active     map[int32]*rotation // 列车 -> 转向状态
}

// NewManager 创建转车台管理器实例
func NewManager(ctx entity.ITaskContext) *TurntableManager {
	return &TurntableManager{
		ctx:        ctx,
		rotateTime: make(map[int32]float64),
		busy:       make(map[int32]int32),
		active:     make(map[int32]*rotation),
	}
}

// Init 初始化所有转车台
func (m *TurntableManager) Init(pbs []input.Turntable) {
	m.rotateTime = lo.SliceToMap(pbs, func(t input.Turntable) (int32, float64) {
		return t.Section, t.RotateTime
	})
}

// IsTurntable 区段是否为转车台
func (m *TurntableManager) IsTurntable(section int32) bool {
	_, ok := m.rotateTime[section]
	return ok
}

// Begin 列车开始转向
// 返回：转车台被其他列车占用时返回false
func (m *TurntableManager) Begin(section int32, train int32) bool {
	t, ok := m.rotateTime[section]
	if !ok {
		return false
	}
	if other, ok := m.busy[section]; ok && other != train {
		return false
	}
	if _, ok := m.active[train]; ok {
		return true
	}
	m.busy[section] = train
	m.active[train] = &rotation{section: section, remaining: t}
	log.Debugf("train %d starts rotating on section %d", train, section)
	return true
}

// Remaining 剩余转向时间，不在转向中返回0
func (m *TurntableManager) Remaining(train int32) float64 {
	if r, ok := m.active[train]; ok {
		return r.remaining
	}
	return 0
}

// Done 是否转向完成
func (m *TurntableManager) Done(train int32) bool {
	r, ok := m.active[train]
	return !ok || r.remaining <= 0
}

// Release 列车离开转车台
func (m *TurntableManager) Release(train int32) {
	if r, ok := m.active[train]; ok {
		delete(m.busy, r.section)
		delete(m.active, train)
	}
}

// Update 更新阶段
func (m *TurntableManager) Update(dt float64) {
	for _, r := range m.active {
		r.remaining = max(r.remaining-dt, 0)
	}
}
