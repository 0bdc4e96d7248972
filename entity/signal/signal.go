package signal

import (
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

// Signal 信号机
// 功能：保护信号机后方的区段，只有为某趟列车开放后该车才能越过
// 说明：开放后在该车离开信号机所在区段时自动恢复停车
type Signal struct {
	id        int32
	section   int32
	direction entity.Direction

	aspect     entity.SignalAspect
	clearedFor int32
	holds      int32 // 扣停计数（时刻表命令与外部接口叠加）

	holdBuffer *bool // 外部接口写入的扣停状态，Prepare时生效
	extHold    bool
}

func newSignal(pb input.Signal) *Signal {
	return &Signal{
		id:         pb.ID,
		section:    pb.Section,
		direction:  entity.Direction(pb.Direction),
		aspect:     entity.SignalStop,
		clearedFor: -1,
	}
}

func (s *Signal) ID() int32 {
	return s.id
}

func (s *Signal) Section() int32 {
	return s.section
}

func (s *Signal) Direction() entity.Direction {
	return s.direction
}

func (s *Signal) Aspect() entity.SignalAspect {
	return s.aspect
}

func (s *Signal) ClearedFor() int32 {
	return s.clearedFor
}

func (s *Signal) IsHeld() bool {
	return s.holds > 0 || s.extHold
}

func (s *Signal) reset() {
	s.aspect = entity.SignalStop
	s.clearedFor = -1
}

// prepare 应用外部扣停，列车离开信号机所在区段后恢复停车
func (s *Signal) prepare(sections entity.ISectionManager) {
	if s.holdBuffer != nil {
		s.extHold = *s.holdBuffer
		s.holdBuffer = nil
	}
	if s.clearedFor == -1 {
		return
	}
	sec := sections.Get(s.section)
	train := s.clearedFor
	if sec.ReservedBy() != train && !containsTrain(sec.OccupiedBy(), train) {
		log.Debugf("signal %d reset after train %d passed", s.id, train)
		s.reset()
	}
}

func containsTrain(trains []int32, train int32) bool {
	for _, t := range trains {
		if t == train {
			return true
		}
	}
	return false
}
