package train

import (
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
)

// stretch 两车对向共用的区间
type stretch struct {
	entry      int32   // 本车进入区间的第一个区段
	otherEntry int32   // 对方进入区间的第一个区段
	sections   []int32 // 按本车行驶顺序
}

// oppositeStretches 查找对向共用区间
// 算法说明：本车路径上连续的区段在对方路径上以相反方向、相反顺序出现时构成一个区间
func oppositeStretches(own, other entity.Route) []stretch {
	var res []stretch
	for i := 0; i < len(own); {
		e := own[i]
		j := indexDir(other, entity.RouteElement{Section: e.Section, Direction: e.Direction.Reverse()})
		if j < 0 {
			i++
			continue
		}
		s := stretch{entry: e.Section, sections: []int32{e.Section}}
		k := 1
		for i+k < len(own) && j-k >= 0 {
			n := own[i+k]
			if other[j-k] != (entity.RouteElement{Section: n.Section, Direction: n.Direction.Reverse()}) {
				break
			}
			s.sections = append(s.sections, n.Section)
			k++
		}
		s.otherEntry = other[j-k+1].Section
		res = append(res, s)
		i += k
	}
	return res
}

// registerDeadlocks 上线时登记死锁保护
// 功能：对所有活动或未上线、当前子路径与本车当前子路径存在对向共用区间的列车，双向登记
func (t *Train) registerDeadlocks() {
	secs := t.ctx.SectionManager()
	own := t.paths[t.subpath]
	others := slices.Concat(t.registry.Active(), t.registry.NotStarted())
	for _, o := range others {
		if o == t || o.gone() || len(o.paths) == 0 {
			continue
		}
		for _, s := range oppositeStretches(own, o.paths[min(o.subpath, len(o.paths)-1)]) {
			secs.RegisterDeadlock(s.entry, t.number, o.number, s.sections)
			secs.RegisterDeadlock(s.otherEntry, o.number, t.number, s.sections)
		}
	}
}

// VerifyDeadlock 过滤死锁冲突
// 功能：冲突列车是本车或对方待执行连挂、交接的对象时不视为死锁
func (t *Train) VerifyDeadlock(conflicts []int32) []int32 {
	return lo.Filter(conflicts, func(n int32, _ int) bool {
		if t.isPartner(n) {
			return false
		}
		o, ok := t.registry.ByNumber(n)
		if !ok || o.gone() {
			return false
		}
		return !o.isPartner(t.number)
	})
}
