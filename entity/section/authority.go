package section

import "github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"

// RequestAuthority 计算行车许可
// 功能：从车头所在区段沿列车有效路径向前检查，沿途为列车预留区段，直到遇到障碍
// 参数：c-请求许可的列车，maxDistance-最大检查距离
// 返回：许可终点的类型与距离（车头起算）
// 算法说明：
// 1. 车头所在区段视为已占用，距离从车头到该区段末端开始累计
// 2. 对每个后续区段依次检查：成环、信号机未对本车开放、被其他列车占用、
// 被其他列车预留（道岔单独区分）、死锁保护
// 3. 通过检查则预留该区段并累计长度，直到路径终点或超过最大检查距离
func (m *SectionManager) RequestAuthority(c entity.IAuthorityClient, maxDistance float64) entity.Authority {
	train := c.Number()
	route := c.ValidRoute()
	idx, offset := c.FrontPosition()
	res := entity.Authority{
		Type:                entity.AuthorityNoPathReserved,
		LastReservedSection: -1,
		Blocker:             -1,
	}
	if idx < 0 || idx >= len(route) {
		return res
	}
	front := m.get(route[idx].Section)
	res.LastReservedSection = front.index
	dist := front.length - offset
	visited := map[int32]struct{}{front.index: {}}
	stop := func(t entity.AuthorityType) entity.Authority {
		res.Type = t
		res.Distance = min(dist, maxDistance)
		return res
	}
	for i := idx + 1; i < len(route); i++ {
		if dist >= maxDistance {
			return stop(entity.AuthorityMaxDistance)
		}
		prev, e := route[i-1], route[i]
		s := m.get(e.Section)
		if _, ok := visited[s.index]; ok {
			return stop(entity.AuthorityLoop)
		}
		visited[s.index] = struct{}{}
		if id := m.get(prev.Section).signals[prev.Direction]; id != -1 {
			if m.ctx.SignalManager().Get(id).ClearedFor() != train {
				return stop(entity.AuthorityEndOfAuthority)
			}
		}
		if s.isOccupiedBy(train) {
			// 路径回到本车尾部所在区段
			return stop(entity.AuthorityLoop)
		}
		if s.IsOccupiedByOther(train) {
			res.Blocker = s.occupiedBy[0]
			return stop(entity.AuthorityTrainAhead)
		}
		if s.reservedBy != -1 && s.reservedBy != train {
			if s.IsJunction() {
				return stop(entity.AuthorityReservedSwitch)
			}
			return stop(entity.AuthorityEndOfAuthority)
		}
		if conflicts := m.DeadlockConflicts(s.index, train); len(conflicts) > 0 {
			if remain := c.VerifyDeadlock(conflicts); len(remain) > 0 {
				log.Debugf("train %d held before section %d by deadlock with %v", train, s.index, remain)
				return stop(entity.AuthorityEndOfAuthority)
			}
		}
		m.reserve(train, s)
		res.LastReservedSection = s.index
		dist += s.length
	}
	if dist > maxDistance {
		return stop(entity.AuthorityMaxDistance)
	}
	if m.get(route[len(route)-1].Section).kind == entity.SectionEndOfTrack {
		return stop(entity.AuthorityEndOfTrack)
	}
	return stop(entity.AuthorityEndOfPath)
}
