package signal

import (
	"fmt"
	"sync"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

// SignalManager 信号机管理器
type SignalManager struct {
	ctx entity.ITaskContext

	data    map[int32]*Signal
	signals []*Signal

	bufferMtx sync.Mutex
}

// NewManager 创建信号机管理器实例
func NewManager(ctx entity.ITaskContext) *SignalManager {
	return &SignalManager{
		ctx:     ctx,
		data:    make(map[int32]*Signal),
		signals: make([]*Signal, 0),
	}
}

// Init 初始化所有信号机
func (m *SignalManager) Init(pbs []input.Signal) {
	m.signals = parallel.GoMap(pbs, newSignal)
	m.data = lo.SliceToMap(m.signals, func(s *Signal) (int32, *Signal) {
		return s.id, s
	})
}

// Get 根据ID获取信号机，如果不存在则panic
func (m *SignalManager) Get(id int32) entity.ISignal {
	if s, ok := m.data[id]; !ok {
		log.Panicf("no id %d in signal data", id)
		return nil
	} else {
		return s
	}
}

// GetOrError 根据ID获取信号机，如果不存在则返回错误
func (m *SignalManager) GetOrError(id int32) (entity.ISignal, error) {
	if s, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in signal data", id)
	} else {
		return s, nil
	}
}

// NextSignal 沿路径查找下一架信号机
func (m *SignalManager) NextSignal(route entity.Route, from int) (int32, int) {
	sections := m.ctx.SectionManager()
	for i := max(from, 0); i < len(route); i++ {
		if id := sections.Get(route[i].Section).Signal(route[i].Direction); id != -1 {
			return id, i
		}
	}
	return -1, -1
}

// RequestClear 请求开放信号
// 功能：列车接近信号机时请求开放
// 参数：id-信号机，train-车次，next-信号机后方第一个区段，permissive-是否允许引导进入占用区段
// 返回：信号是否已为该车开放
// 算法说明：
// 1. 已为该车开放直接返回true；已为其他列车开放或被扣停返回false
// 2. 后方区段被其他列车预留则拒绝；被占用时仅permissive可开放引导信号
func (m *SignalManager) RequestClear(id int32, train int32, next int32, permissive bool) bool {
	s, ok := m.data[id]
	if !ok {
		return false
	}
	if s.clearedFor == train {
		return true
	}
	if s.clearedFor != -1 || s.IsHeld() {
		return false
	}
	sec := m.ctx.SectionManager().Get(next)
	if r := sec.ReservedBy(); r != -1 && r != train && !containsTrain(sec.OccupiedBy(), r) {
		return false
	}
	if sec.IsOccupiedByOther(train) {
		if !permissive {
			return false
		}
		s.aspect = entity.SignalRestricting
	} else {
		s.aspect = entity.SignalClear
	}
	s.clearedFor = train
	return true
}

// AddHold 扣停信号
func (m *SignalManager) AddHold(id int32) {
	if s, ok := m.data[id]; ok {
		s.holds++
	}
}

// RemoveHold 解除一次扣停
func (m *SignalManager) RemoveHold(id int32) {
	if s, ok := m.data[id]; ok && s.holds > 0 {
		s.holds--
	}
}

// Prepare 准备阶段
func (m *SignalManager) Prepare() {
	m.bufferMtx.Lock()
	defer m.bufferMtx.Unlock()
	sections := m.ctx.SectionManager()
	for _, s := range m.signals {
		s.prepare(sections)
	}
}
