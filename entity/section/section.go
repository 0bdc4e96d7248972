package section

import (
	"slices"

	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

// Section 轨道区段
// 功能：记录区段的静态属性以及被哪些列车占用、被哪趟列车预留
// 说明：列车先预留再占用；发生连挂时同一区段可被多趟列车同时占用
type Section struct {
	index  int32
	length float64
	kind   entity.SectionKind
	maxV   float64

	signals   [2]int32 // 两个方向末端的信号机
	platforms []int32

	occupiedBy []int32 // 按进入顺序
	reservedBy int32
}

func newSection(pb input.Section) *Section {
	kind, err := entity.ParseSectionKind(pb.Kind)
	if err != nil {
		log.Panicf("section %d: %v", pb.Index, err)
	}
	return &Section{
		index:      pb.Index,
		length:     pb.Length,
		kind:       kind,
		maxV:       pb.MaxV,
		signals:    [2]int32{-1, -1},
		platforms:  make([]int32, 0),
		occupiedBy: make([]int32, 0),
		reservedBy: -1,
	}
}

func (s *Section) Index() int32 {
	return s.index
}

func (s *Section) Length() float64 {
	return s.length
}

func (s *Section) Kind() entity.SectionKind {
	return s.kind
}

func (s *Section) IsJunction() bool {
	return s.kind == entity.SectionJunction || s.kind == entity.SectionCrossover
}

func (s *Section) MaxV() float64 {
	return s.maxV
}

func (s *Section) Signal(d entity.Direction) int32 {
	return s.signals[d]
}

func (s *Section) Platforms() []int32 {
	return s.platforms
}

func (s *Section) OccupiedBy() []int32 {
	return s.occupiedBy
}

func (s *Section) ReservedBy() int32 {
	return s.reservedBy
}

func (s *Section) isOccupiedBy(train int32) bool {
	return slices.Contains(s.occupiedBy, train)
}

// IsOccupiedByOther 是否被train以外的列车占用
func (s *Section) IsOccupiedByOther(train int32) bool {
	for _, t := range s.occupiedBy {
		if t != train {
			return true
		}
	}
	return false
}

// IsClearFor 区段对train是否空闲（未被其他列车占用或预留）
func (s *Section) IsClearFor(train int32) bool {
	if s.reservedBy != -1 && s.reservedBy != train {
		return false
	}
	return !s.IsOccupiedByOther(train)
}

// canReserve 预留检查
// 说明：permissive时允许进入其他列车占用（但未预留）的区段
func (s *Section) canReserve(train int32, permissive bool) bool {
	if s.reservedBy != -1 && s.reservedBy != train {
		// 其他列车停在区段内形成的预留，允许引导进入
		return permissive && s.isOccupiedBy(s.reservedBy)
	}
	return permissive || !s.IsOccupiedByOther(train)
}

func (s *Section) reserve(train int32) {
	s.reservedBy = train
}

func (s *Section) occupy(train int32) {
	if !s.isOccupiedBy(train) {
		s.occupiedBy = append(s.occupiedBy, train)
	}
	if s.reservedBy == -1 {
		s.reservedBy = train
	}
}

// vacate 列车离开区段，预留转交给剩余占用列车中最早进入的一趟
func (s *Section) vacate(train int32) {
	s.occupiedBy = slices.DeleteFunc(s.occupiedBy, func(t int32) bool { return t == train })
	if s.reservedBy == train {
		s.reservedBy = -1
		if len(s.occupiedBy) > 0 {
			s.reservedBy = s.occupiedBy[0]
		}
	}
}

// unreserve 取消预留（仅对未被该列车占用的区段生效）
func (s *Section) unreserve(train int32) {
	if s.reservedBy == train && !s.isOccupiedBy(train) {
		s.reservedBy = -1
		if len(s.occupiedBy) > 0 {
			s.reservedBy = s.occupiedBy[0]
		}
	}
}
