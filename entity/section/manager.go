package section

import (
	"errors"
	"fmt"
	"slices"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

// ErrPlacement 列车无法放置到轨道上（区段被占用或预留）
var ErrPlacement = errors.New("train placement failed")

// SectionManager 区段管理器
// 功能：管理所有区段与站台，提供预留、占用、释放、行车许可与死锁登记
type SectionManager struct {
	ctx entity.ITaskContext

	data      map[int32]*Section
	sections  []*Section
	platforms map[int32]*entity.Platform
	stations  map[string][]*entity.Platform

	held      map[int32]map[int32]struct{}        // 列车 -> 预留或占用的区段
	deadlocks map[int32]map[int32][]deadlockRecord // 入口区段 -> 列车 -> 死锁记录
}

// NewManager 创建区段管理器实例
func NewManager(ctx entity.ITaskContext) *SectionManager {
	return &SectionManager{
		ctx:       ctx,
		data:      make(map[int32]*Section),
		sections:  make([]*Section, 0),
		platforms: make(map[int32]*entity.Platform),
		stations:  make(map[string][]*entity.Platform),
		held:      make(map[int32]map[int32]struct{}),
		deadlocks: make(map[int32]map[int32][]deadlockRecord),
	}
}

// Init 初始化所有区段与站台
// 功能：创建区段对象，挂接信号机，推算站台长度与出站信号机
// 参数：pbs-区段，platforms-站台，signals-信号机
func (m *SectionManager) Init(pbs []input.Section, platforms []input.Platform, signals []input.Signal) {
	m.sections = parallel.GoMap(pbs, newSection)
	m.data = lo.SliceToMap(m.sections, func(s *Section) (int32, *Section) {
		return s.index, s
	})
	for _, sg := range signals {
		m.Get(sg.Section).(*Section).signals[sg.Direction] = sg.ID
	}
	for _, pb := range platforms {
		p := m.newPlatform(pb)
		m.platforms[p.ID] = p
		m.stations[p.Station] = append(m.stations[p.Station], p)
		for _, s := range p.Sections {
			sec := m.data[s]
			sec.platforms = append(sec.platforms, p.ID)
		}
	}
}

// newPlatform 由输入构造站台，推算长度以及两个方向的出站信号机
func (m *SectionManager) newPlatform(pb input.Platform) *entity.Platform {
	p := &entity.Platform{
		ID:            pb.ID,
		Name:          pb.Name,
		Station:       pb.Station,
		Sections:      pb.Sections,
		StartOffset:   pb.StartOffset,
		EndOffset:     pb.EndOffset,
		Length:        pb.Length,
		MinStopTime:   pb.MinStopTime,
		ExitSignals:   [2]int32{-1, -1},
		DistToSignals: [2]float64{0, 0},
	}
	n := len(p.Sections)
	first, last := m.data[p.Sections[0]], m.data[p.Sections[n-1]]
	if p.Length == 0 {
		if n == 1 {
			p.Length = p.EndOffset - p.StartOffset
		} else {
			p.Length = first.length - p.StartOffset + p.EndOffset
			for _, s := range p.Sections[1 : n-1] {
				p.Length += m.data[s].length
			}
		}
	}
	// 正方向：从末区段往回找，越靠近站台末端越优先
	inside := 0.
	for k := n - 1; k >= 0; k-- {
		sec := m.data[p.Sections[k]]
		if k < n-1 {
			if k == n-2 {
				inside += p.EndOffset
			} else {
				inside += m.data[p.Sections[k+1]].length
			}
		}
		if sec.signals[entity.Forward] != -1 {
			p.ExitSignals[entity.Forward] = sec.signals[entity.Forward]
			if k == n-1 {
				p.DistToSignals[entity.Forward] = last.length - p.EndOffset
			} else {
				p.DistToSignals[entity.Forward] = -inside
			}
			break
		}
	}
	// 反方向
	inside = 0.
	for k := 0; k < n; k++ {
		sec := m.data[p.Sections[k]]
		if k > 0 {
			if k == 1 {
				inside += first.length - p.StartOffset
			} else {
				inside += m.data[p.Sections[k-1]].length
			}
		}
		if sec.signals[entity.Backward] != -1 {
			p.ExitSignals[entity.Backward] = sec.signals[entity.Backward]
			if k == 0 {
				p.DistToSignals[entity.Backward] = p.StartOffset
			} else {
				p.DistToSignals[entity.Backward] = -inside
			}
			break
		}
	}
	return p
}

// Get 根据索引获取区段，如果不存在则panic
func (m *SectionManager) Get(index int32) entity.ISection {
	if s, ok := m.data[index]; !ok {
		log.Panicf("no index %d in section data", index)
		return nil
	} else {
		return s
	}
}

// GetOrError 根据索引获取区段，如果不存在则返回错误
func (m *SectionManager) GetOrError(index int32) (entity.ISection, error) {
	if s, ok := m.data[index]; !ok {
		return nil, fmt.Errorf("no index %d in section data", index)
	} else {
		return s, nil
	}
}

// Platform 根据ID获取站台
func (m *SectionManager) Platform(id int32) (*entity.Platform, error) {
	if p, ok := m.platforms[id]; !ok {
		return nil, fmt.Errorf("no id %d in platform data", id)
	} else {
		return p, nil
	}
}

// PlatformsOfStation 获取车站的全部站台
func (m *SectionManager) PlatformsOfStation(station string) []*entity.Platform {
	return m.stations[station]
}

func (m *SectionManager) get(index int32) *Section {
	return m.Get(index).(*Section)
}

func (m *SectionManager) hold(train int32, s *Section) {
	set, ok := m.held[train]
	if !ok {
		set = make(map[int32]struct{})
		m.held[train] = set
	}
	set[s.index] = struct{}{}
}

func (m *SectionManager) reserve(train int32, s *Section) {
	if s.reservedBy == -1 {
		s.reserve(train)
	}
	m.hold(train, s)
}

// PlaceTrain 放置列车
// 功能：列车出现在轨道上时一次性占用其覆盖的全部区段
// 参数：train-车次，sections-列车覆盖的区段
// 返回：是否成功
// 算法说明：
// 1. 预留阶段：逐个检查并预留，任意区段失败则回滚本次预留
// 2. 占用阶段：全部预留成功后统一占用
func (m *SectionManager) PlaceTrain(train int32, sections []int32) bool {
	return m.OccupySections(train, sections, false)
}

// OccupySections 占用区段（预留-占用两阶段），已被该列车占用的区段跳过
// 参数：permissive-允许进入其他列车停留的区段（连挂、引导进站）
func (m *SectionManager) OccupySections(train int32, sections []int32, permissive bool) bool {
	reserved := make([]*Section, 0, len(sections))
	for _, idx := range sections {
		s := m.get(idx)
		if s.isOccupiedBy(train) {
			continue
		}
		if !s.canReserve(train, permissive) {
			for _, r := range reserved {
				m.release(train, r, false)
			}
			log.Debugf("%v: train %d cannot occupy section %d (reserved by %d, occupied by %v)", ErrPlacement, train, idx, s.reservedBy, s.occupiedBy)
			return false
		}
		if s.reservedBy != train {
			reserved = append(reserved, s)
		}
		m.reserve(train, s)
	}
	for _, idx := range sections {
		s := m.get(idx)
		s.occupy(train)
		m.hold(train, s)
	}
	return true
}

// release 释放区段，occupied为false时只撤销预留
func (m *SectionManager) release(train int32, s *Section, occupied bool) {
	if occupied {
		s.vacate(train)
	} else {
		s.unreserve(train)
	}
	if s.reservedBy != train && !s.isOccupiedBy(train) {
		delete(m.held[train], s.index)
	}
}

// ReleaseSections 释放列车在指定区段上的占用与预留
func (m *SectionManager) ReleaseSections(train int32, sections []int32) {
	for _, idx := range sections {
		m.release(train, m.get(idx), true)
	}
}

// ReleaseTrain 释放列车的全部占用与预留
func (m *SectionManager) ReleaseTrain(train int32) {
	for idx := range m.held[train] {
		m.data[idx].vacate(train)
	}
	delete(m.held, train)
}

// ClearReservations 清除列车在未占用区段上的预留
func (m *SectionManager) ClearReservations(train int32) {
	for idx := range m.held[train] {
		s := m.data[idx]
		if !s.isOccupiedBy(train) {
			m.release(train, s, false)
		}
	}
}

// Held 列车当前预留或占用的区段（按索引排序）
func (m *SectionManager) Held(train int32) []int32 {
	res := lo.Keys(m.held[train])
	slices.Sort(res)
	return res
}
