// Package stopcalc 停站位置计算
package stopcalc

import (
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
)

// Geometry 计算所需的线路数据
type Geometry interface {
	SectionLength(section int32) float64
	// 区段上的站台
	PlatformsOn(section int32) []*entity.Platform
}

// Request 停站计算请求
type Request struct {
	Paths       []entity.Route // 全部子路径
	FromSubpath int            // 从该子路径开始查找
	FromIndex   int            // 在FromSubpath中从该索引开始查找
	Platform    *entity.Platform
	TrainLength float64

	Terminal         bool
	Closeup          bool
	ExtendToSignal   bool
	RestrictToSignal bool
	KeepClearFront   float64
	KeepClearRear    float64
	ForcePosition    bool
	HoldMode         timetable.HoldMode
}

// Result 停站计算结果
type Result struct {
	Subpath    int
	RouteIndex int // 车头停车区段在子路径中的索引
	Section    int32
	StopOffset float64 // 车头在停车区段内的位置（沿行驶方向）
	ExitSignal int32
	HoldSignal bool
}

// locate 在路径上定位站台
// 返回：子路径、站台末端区段索引、站台始端区段索引、行驶方向
func locate(req *Request) (sp int, endIdx int, beginIdx int, dir entity.Direction, ok bool) {
	for sp = max(req.FromSubpath, 0); sp < len(req.Paths); sp++ {
		route := req.Paths[sp]
		from := 0
		if sp == req.FromSubpath {
			from = max(req.FromIndex, 0)
		}
		first := -1
		for i := from; i < len(route); i++ {
			if req.Platform.HasSection(route[i].Section) {
				first = i
				break
			}
		}
		if first < 0 {
			continue
		}
		dir = route[first].Direction
		endIdx = route.Index(req.Platform.EndSection(dir), first)
		if endIdx < 0 {
			// 路径从站台中部驶离，取连续的最后一个站台区段
			endIdx = first
			for endIdx+1 < len(route) && req.Platform.HasSection(route[endIdx+1].Section) {
				endIdx++
			}
		}
		beginIdx = first
		return sp, endIdx, beginIdx, dir, true
	}
	return 0, 0, 0, 0, false
}

// Calculate 计算停站位置
// 功能：确定车头停车位置、出站信号机与是否扣停出站信号
// 参数：req-请求，g-线路数据，c-列车常量
// 返回：计算结果；站台不在路径上时返回false
// 算法说明：
// 1. 在路径上定位站台（当前子路径找不到时依次尝试后续子路径）
// 2. 以站台末端为基准，用beyond表示车头越过站台末端的距离（负值表示停在末端之前）
// 3. 列车长于站台时尝试用路径上紧邻的同名站台延长可用长度
// 4. 仍放不下：车身居中，beyond = -0.5*delta，不使用出站信号机
// 5. 有出站信号：车头与信号机保持closeup或出清余量，同时保证车尾在站台内
// 6. 无出站信号：车身在站台内居中
// 7. 应用keepclear前后余量；force时不再保证车尾在站台内
// 8. 终到站：位于路径起点时车头停在站台始端+车长+0.5出清距离，位于路径终点时距路径末端closeup余量
// 9. 扣停：有出站信号时缺省扣停，nohold不扣停，forcehold强制扣停；force或车头已越过信号机时不扣停
func Calculate(req Request, g Geometry, c *config.TrainConstants) (Result, bool) {
	sp, endIdx, beginIdx, dir, ok := locate(&req)
	if !ok {
		return Result{}, false
	}
	route := req.Paths[sp]
	p := req.Platform
	endSection := route[endIdx].Section
	endOffset := p.EndOffsetIn(dir, g.SectionLength(endSection))
	if !p.HasSection(endSection) || endSection != p.EndSection(dir) {
		endOffset = g.SectionLength(endSection)
	}
	usable := p.Length

	exitSignal := p.ExitSignals[dir]
	distToSignal := p.DistToSignals[dir]
	if exitSignal != -1 && distToSignal < 0 && !req.RestrictToSignal {
		// 信号机位于站台内部，但未要求以信号机为界
		exitSignal = -1
	}
	if exitSignal != -1 && req.RestrictToSignal && distToSignal < 0 {
		usable += distToSignal
	}
	if exitSignal != -1 && req.ExtendToSignal && distToSignal > 0 {
		usable += distToSignal
	}

	// 紧邻的同名站台
	if usable < req.TrainLength && beginIdx > 0 {
		prev := route[beginIdx-1].Section
		for _, other := range g.PlatformsOn(prev) {
			if other.ID != p.ID && other.Name == p.Name {
				usable += other.Length
				break
			}
		}
	}

	delta := usable - req.TrainLength
	margin := c.ClearingDistance
	if req.Closeup {
		margin = c.CloseupDistance
	}
	var beyond float64
	switch {
	case delta < 0:
		beyond = -0.5 * delta
		exitSignal = -1
	case exitSignal != -1:
		limit := distToSignal - margin
		if !req.ExtendToSignal {
			limit = min(limit, 0)
		}
		if req.RestrictToSignal && distToSignal < 0 {
			limit = distToSignal - margin
		}
		rearInside := -(usable - req.TrainLength)
		if req.RestrictToSignal && distToSignal < 0 {
			rearInside = distToSignal - (usable - req.TrainLength)
		}
		beyond = max(limit, rearInside)
	default:
		beyond = -0.5 * delta
	}

	if req.KeepClearFront > 0 {
		v := -req.KeepClearFront
		if req.ForcePosition || v >= -delta {
			beyond = min(beyond, v)
		}
	}
	if req.KeepClearRear > 0 {
		v := -(usable - req.TrainLength - req.KeepClearRear)
		if req.ForcePosition || v <= 0 {
			beyond = max(beyond, v)
		}
	}

	if req.Terminal {
		last := len(req.Paths) - 1
		switch {
		case sp == 0 && beginIdx == 0:
			beyond = req.TrainLength + 0.5*c.ClearingDistance - usable
		case sp == last && endIdx == len(route)-1:
			beyond = g.SectionLength(endSection) - endOffset - c.CloseupDistance
		}
	}

	hold := false
	if exitSignal != -1 {
		switch req.HoldMode {
		case timetable.HoldDefault, timetable.HoldForce:
			hold = true
		}
		if req.ForcePosition || beyond > distToSignal {
			hold = false
		}
	}

	idx, offset := normalize(route, endIdx, endOffset+beyond, g)
	return Result{
		Subpath:    sp,
		RouteIndex: idx,
		Section:    route[idx].Section,
		StopOffset: offset,
		ExitSignal: exitSignal,
		HoldSignal: hold,
	}, true
}

// normalize 将区段内可能越界的位置规整到路径上的区段
func normalize(route entity.Route, idx int, offset float64, g Geometry) (int, float64) {
	for offset < 0 && idx > 0 {
		idx--
		offset += g.SectionLength(route[idx].Section)
	}
	for idx+1 < len(route) && offset > g.SectionLength(route[idx].Section) {
		offset -= g.SectionLength(route[idx].Section)
		idx++
	}
	offset = max(offset, 0)
	return idx, min(offset, g.SectionLength(route[idx].Section))
}
