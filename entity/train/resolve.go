package train

import (
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
)

// resolve 解析引用其他列车的命令
// 功能：全部列车创建后调用，将按车名引用的命令转换为按车次引用的义务
// 说明：引用不存在的列车时记录警告并丢弃该命令
func (t *Train) resolve() {
	t.resolveWaits()
	t.resolveConnects()
	t.resolveAttach()
	t.resolvePickUps()
	t.resolveTransfers()
	t.resolveDetaches()
	t.resolveTriggers()
	t.resolveForms()
	clear(t.attachCmd)
	clear(t.pickupCmd)
	clear(t.transferCmd)
	clear(t.detachCmd)
	t.activateCmd = nil
}

// lookup 按车名查找其他列车
func (t *Train) lookup(name, what string) (*Train, bool) {
	o, ok := t.registry.ByName(name)
	if !ok || o == t {
		log.Warnf("train %d(%s): %s refers to unknown train %s", t.number, t.name, what, name)
		return nil, false
	}
	return o, true
}

// locationOrder 编组命令的位置：按停站顺序，最后为路径终点
func (t *Train) locationOrder() []int32 {
	order := lo.Map(t.stops, func(s *timetable.StationStop, _ int) int32 { return s.Platform })
	return append(lo.Uniq(order), timetable.PlatformEndOfRoute)
}

// partnerKey 本车在位置platform的编组作业登记到对方时使用的位置键
// 算法说明：
// 1. 路径终点对应本车最后一个停站的站台
// 2. 该站台是对方第一个停站时登记为对方的路径起点
func (t *Train) partnerKey(o *Train, platform int32) int32 {
	if platform == timetable.PlatformEndOfRoute && len(t.stops) > 0 {
		platform = t.stops[len(t.stops)-1].Platform
	}
	if len(o.stops) > 0 && o.stops[0].Platform == platform {
		return timetable.PlatformStartOfRoute
	}
	return platform
}

// resolveAttach 每趟列车最多一个连挂义务，取最早的位置
func (t *Train) resolveAttach() {
	for _, k := range t.locationOrder() {
		cmd, ok := t.attachCmd[k]
		if !ok {
			continue
		}
		if t.attach != nil {
			log.Warnf("train %d(%s): more than one attach, %s ignored", t.number, t.name, cmd.Other)
			continue
		}
		o, ok := t.lookup(cmd.Other, "attach")
		if !ok {
			continue
		}
		t.attach = &timetable.AttachInfo{
			Platform:    k,
			OtherNumber: o.number,
			OtherName:   o.name,
			SetBack:     cmd.SetBack,
			Valid:       true,
		}
		key := t.partnerKey(o, k)
		o.needAttach[key] = append(o.needAttach[key], t.number)
	}
}

func (t *Train) resolvePickUps() {
	for _, k := range t.locationOrder() {
		for _, name := range t.pickupCmd[k] {
			o, ok := t.lookup(name, "pickup")
			if !ok {
				continue
			}
			t.pickups[k] = append(t.pickups[k], &timetable.PickUpInfo{
				Platform:    k,
				OtherNumber: o.number,
				OtherName:   o.name,
				Valid:       true,
			})
		}
	}
}

func (t *Train) resolveTransfers() {
	for _, k := range t.locationOrder() {
		for _, cmd := range t.transferCmd[k] {
			o, ok := t.lookup(cmd.Other, "transfer")
			if !ok {
				continue
			}
			t.transfers[k] = append(t.transfers[k], &timetable.TransferInfo{
				Platform:    k,
				OtherNumber: o.number,
				OtherName:   o.name,
				Give:        cmd.Give,
				Spec:        cmd.Spec,
				Valid:       true,
			})
			key := t.partnerKey(o, k)
			o.needTransfer[key] = append(o.needTransfer[key], t.number)
		}
	}
}

// resolveDetaches 解编形成的车次不存在时保留义务，只分出车辆
func (t *Train) resolveDetaches() {
	for _, k := range t.locationOrder() {
		for _, cmd := range t.detachCmd[k] {
			d := &timetable.DetachInfo{
				Platform:    k,
				Spec:        cmd.Spec,
				FormsName:   cmd.Forms,
				FormsNumber: -1,
				Valid:       true,
			}
			if o, ok := t.lookup(cmd.Forms, "detach"); ok {
				d.FormsNumber = o.number
			} else {
				d.Valid = false
			}
			t.detaches[k] = append(t.detaches[k], d)
		}
	}
}

// resolveTriggers 只有需触发的列车可以被激活
func (t *Train) resolveTriggers() {
	for _, c := range t.activateCmd {
		o, ok := t.lookup(c.target, "activate")
		if !ok {
			continue
		}
		if !o.triggered {
			log.Warnf("train %d(%s): %s is not a triggered train, activate ignored", t.number, t.name, o.name)
			continue
		}
		t.triggers = append(t.triggers, &timetable.Trigger{
			Kind:         c.kind,
			Platform:     c.platform,
			TargetName:   o.name,
			TargetNumber: o.number,
		})
	}
	slices.SortStableFunc(t.triggers, func(a, b *timetable.Trigger) int {
		return int(a.Kind) - int(b.Kind)
	})
}

func (t *Train) resolveForms() {
	if t.formsName == "" {
		return
	}
	if o, ok := t.lookup(t.formsName, "forms"); ok {
		t.formsNumber = o.number
	}
}
