package train

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/container"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/randengine"
)

// Manager 列车管理器
// 功能：创建并持有全部列车，维护活动列车集合与上线队列，按固定顺序逐车更新
// 说明：同时作为列车注册表供协调与编组逻辑按车次、车名解析其他列车
type Manager struct {
	ctx entity.ITaskContext
	rnd *randengine.Engine

	trains   []*Train // 按车次排序
	byNumber map[int32]*Train
	byName   map[string]*Train

	// 活动列车，增删在下一步Prepare时生效
	active *container.IncrementalArray[*Train]
	// 等待上线的列车，优先级为最早上线时刻
	queue *container.PriorityQueue[*Train]

	errs []error
}

// NewManager 创建列车管理器实例
func NewManager(ctx entity.ITaskContext, rnd *randengine.Engine) *Manager {
	return &Manager{
		ctx:      ctx,
		rnd:      rnd,
		trains:   make([]*Train, 0),
		byNumber: make(map[int32]*Train),
		byName:   make(map[string]*Train),
		active:   container.NewIncrementalArray[*Train](),
		queue:    container.NewPriorityQueue[*Train](),
	}
}

// Init 初始化所有列车
// 功能：创建列车，建立车次与车名索引，解析列车间的引用，按上线时刻排队
// 说明：车次或车名重复的列车被忽略；需触发或只能由其他列车形成的列车不排队
func (m *Manager) Init(pbs []input.Train) {
	pbs = slices.Clone(pbs)
	slices.SortStableFunc(pbs, func(a, b input.Train) int { return int(a.Number) - int(b.Number) })
	for _, pb := range pbs {
		if _, ok := m.byNumber[pb.Number]; ok {
			log.Warnf("duplicate train number %d, ignored", pb.Number)
			continue
		}
		if _, ok := m.byName[strings.ToLower(pb.Name)]; ok {
			log.Warnf("duplicate train name %s, ignored", pb.Name)
			continue
		}
		if len(pb.Paths) == 0 || len(pb.Paths[0].Route) == 0 {
			log.Warnf("train %d(%s) has no path, ignored", pb.Number, pb.Name)
			continue
		}
		t := newTrain(m.ctx, m, m.rnd, pb)
		m.trains = append(m.trains, t)
		m.byNumber[t.number] = t
		m.byName[strings.ToLower(t.name)] = t
	}
	for _, t := range m.trains {
		t.resolve()
	}
	for _, t := range m.trains {
		if !t.triggered && t.startTime != timetable.None {
			m.queue.HeapPush(t, t.startTime)
		}
	}
	log.Infof("%d trains loaded, %d scheduled", len(m.trains), m.queue.Len())
}

// Get 根据车次获取列车，如果不存在则panic
func (m *Manager) Get(number int32) *Train {
	if t, ok := m.byNumber[number]; !ok {
		log.Panicf("no number %d in train data", number)
		return nil
	} else {
		return t
	}
}

// GetOrError 根据车次获取列车，如果不存在则返回错误
func (m *Manager) GetOrError(number int32) (*Train, error) {
	if t, ok := m.byNumber[number]; !ok {
		return nil, fmt.Errorf("no number %d in train data", number)
	} else {
		return t, nil
	}
}

// Trains 全部列车（按车次排序）
func (m *Manager) Trains() []*Train {
	return m.trains
}

func (m *Manager) ByNumber(number int32) (*Train, bool) {
	t, ok := m.byNumber[number]
	return t, ok
}

// ByName 按车名查找（不区分大小写）
func (m *Manager) ByName(name string) (*Train, bool) {
	t, ok := m.byName[strings.ToLower(name)]
	return t, ok
}

func (m *Manager) NotStarted() []*Train {
	return lo.Filter(m.trains, func(t *Train, _ int) bool {
		return !t.started() && !t.gone()
	})
}

func (m *Manager) Active() []*Train {
	return m.active.Data()
}

func (m *Manager) AddActive(t *Train) {
	m.active.Add(t)
}

func (m *Manager) RemoveActive(t *Train) {
	m.active.Remove(t)
}

// Schedule 被触发的列车排队上线，不早于其计划上线时刻
func (m *Manager) Schedule(t *Train) {
	m.queue.HeapPush(t, max(m.ctx.Clock().T, t.startTime))
}

// Fail 记录编组作业中的硬错误
func (m *Manager) Fail(err error) {
	m.errs = append(m.errs, err)
}

// Err 取出并清空已记录的硬错误
func (m *Manager) Err() error {
	err := errors.Join(m.errs...)
	m.errs = nil
	return err
}

// ActiveCount 活动列车数
func (m *Manager) ActiveCount() int {
	return m.active.Len()
}

// Prepare 准备阶段
// 算法说明：
// 1. 到达上线时刻的列车依次尝试上线，未能上线的列车按原优先级重新排队
// 2. 应用活动集合的增删（含本步上线的列车）
func (m *Manager) Prepare() {
	now := m.ctx.Clock().T
	type retry struct {
		t  *Train
		at float64
	}
	var retries []retry
	for m.queue.Len() > 0 {
		if _, at := m.queue.First(); at > now {
			break
		}
		t, at := m.queue.HeapPop()
		if t.started() || t.gone() {
			continue
		}
		if !t.activate() {
			retries = append(retries, retry{t, at})
		}
	}
	for _, r := range retries {
		m.queue.HeapPush(r.t, r.at)
	}
	m.active.Prepare()
	log.Debugf("TrainManager: prepare done, %d active", m.active.Len())
}

// Update 更新阶段：按活动集合的固定顺序逐车更新
func (m *Manager) Update(dt float64) {
	for _, t := range m.active.Data() {
		t.Update(dt)
	}
}

// ManagerSnapshot 全部列车与上线队列的快照
type ManagerSnapshot struct {
	T      float64     `bson:"t"`
	Trains []*Snapshot `bson:"trains"`
	Active []int32     `bson:"active"`
	Queue  []Queued    `bson:"queue"`
}

// Queued 上线队列中的列车
type Queued struct {
	Number int32   `bson:"number"`
	At     float64 `bson:"at"`
}

// Snapshot 导出全部列车状态
func (m *Manager) Snapshot() *ManagerSnapshot {
	return &ManagerSnapshot{
		T:      m.ctx.Clock().T,
		Trains: parallel.GoMap(m.trains, func(t *Train) *Snapshot { return t.Snapshot() }),
		Active: lo.Map(m.active.Data(), func(t *Train, _ int) int32 { return t.number }),
		Queue: lo.Map(m.queue.Entries(), func(e container.Entry[*Train], _ int) Queued {
			return Queued{Number: e.Value.number, At: e.Priority}
		}),
	}
}

// Restore 由快照恢复
// 功能：在刚完成Init的仿真上恢复全部列车、活动集合与上线队列，并重新登记区段占用、扣停与死锁保护
// 说明：只对活动列车重置动作，其余派生状态在下一步重新计算
func (m *Manager) Restore(s *ManagerSnapshot) error {
	for _, ts := range s.Trains {
		if _, ok := m.byNumber[ts.Number]; !ok {
			return fmt.Errorf("snapshot train %d(%s) not in timetable", ts.Number, ts.Name)
		}
	}
	for _, ts := range s.Trains {
		m.byNumber[ts.Number].restore(ts)
	}
	m.active = container.NewIncrementalArray[*Train]()
	for _, t := range m.trains {
		t.SetIndex(-1)
	}
	for _, n := range s.Active {
		t, ok := m.byNumber[n]
		if !ok {
			return fmt.Errorf("active train %d not in timetable", n)
		}
		m.active.Add(t)
	}
	m.active.Prepare()
	m.queue = container.NewPriorityQueue[*Train]()
	for _, q := range s.Queue {
		if t, ok := m.byNumber[q.Number]; ok {
			m.queue.HeapPush(t, q.At)
		}
	}
	secs := m.ctx.SectionManager()
	for _, t := range m.trains {
		if !t.onTrack {
			continue
		}
		if !secs.OccupySections(t.number, t.occupied, true) {
			return fmt.Errorf("train %d: cannot occupy %v", t.number, t.occupied)
		}
		if s := t.headStop(); t.holding && s != nil && s.ExitSignal != -1 {
			m.ctx.SignalManager().AddHold(s.ExitSignal)
		}
	}
	for _, t := range m.active.Data() {
		t.registerDeadlocks()
		t.ResetActions()
	}
	log.Infof("restored %d trains at %.0f, %d active", len(s.Trains), s.T, m.active.Len())
	return nil
}
