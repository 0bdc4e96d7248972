package train

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
)

// stopsAt 列车是否还会停靠（或正停靠）指定车站
func (t *Train) stopsAt(station string) bool {
	return lo.ContainsBy(t.stops, func(s *timetable.StationStop) bool {
		return sameName(s.Station, station)
	})
}

// resolveConnects 解析停站上的联络等待
// 说明：对方列车不存在或不停靠同名车站时联络被删除
func (t *Train) resolveConnects() {
	for _, s := range t.stops {
		s.Connects = lo.Filter(s.Connects, func(c *timetable.WaitInfo, _ int) bool {
			o, ok := t.registry.ByName(c.OtherName)
			if !ok || o == t {
				log.Warnf("train %d(%s): connect at %s refers to unknown train %s", t.number, t.name, s.Station, c.OtherName)
				return false
			}
			if !o.stopsAt(c.Station) {
				log.Warnf("train %d(%s): %s does not stop at %s, connect dropped", t.number, t.name, o.name, c.Station)
				return false
			}
			c.OtherNumber = o.number
			c.OtherName = o.name
			return true
		})
	}
}

// connectsPending 停站的联络等待是否尚未满足
// 算法说明：
// 1. 对方到达本站后记录到达时刻，等待到 到达+hold
// 2. 对方不会再到达本站（已离开仿真或不再停靠）时删除联络
// 3. 非强制联络在本车发车时刻到达而对方尚未上线时删除，forcewait继续等待
func (t *Train) connectsPending(s *timetable.StationStop) bool {
	now := t.now()
	pending := false
	kept := s.Connects[:0]
	for _, c := range s.Connects {
		o, ok := t.registry.ByNumber(c.OtherNumber)
		if !ok {
			log.Warnf("train %d: connect partner %s is gone", t.number, c.OtherName)
			continue
		}
		if c.ArrivalRecord == timetable.None {
			if at, ok := o.arrivals[c.Station]; ok {
				c.ArrivalRecord = at
			}
		}
		if c.ArrivalRecord == timetable.None {
			if o.gone() || (o.started() && !o.stopsAt(c.Station)) {
				log.Warnf("train %d: %s will not arrive at %s, connect dropped", t.number, o.name, c.Station)
				continue
			}
			if !c.Forced && !o.started() && now >= t.departure {
				log.Infof("train %d: %s not started, departs without connection", t.number, o.name)
				continue
			}
		}
		kept = append(kept, c)
		c.Active = c.ArrivalRecord == timetable.None || now < c.ArrivalRecord+c.HoldTime
		pending = pending || c.Active
	}
	clear(s.Connects[len(kept):])
	s.Connects = kept
	return pending
}
