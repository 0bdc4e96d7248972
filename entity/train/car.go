package train

import (
	"slices"

	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

// Car 车辆
type Car struct {
	ID      string  `bson:"id"`
	Length  float64 `bson:"length"`
	Powered bool    `bson:"powered"`
	Tender  bool    `bson:"tender"`
	Consist string  `bson:"consist,omitempty"`
	Flipped bool    `bson:"flipped"` // 车辆朝向与列车行驶方向相反
}

func newCars(pbs []input.Car) []*Car {
	cars := make([]*Car, len(pbs))
	for i, pb := range pbs {
		cars[i] = &Car{ID: pb.ID, Length: pb.Length, Powered: pb.Powered, Tender: pb.Tender, Consist: pb.Consist}
	}
	return cars
}

func carsLength(cars []*Car) float64 {
	l := 0.
	for _, c := range cars {
		l += c.Length
	}
	return l
}

func hasPowered(cars []*Car) bool {
	return slices.ContainsFunc(cars, func(c *Car) bool { return c.Powered })
}

// reverseCars 车列倒转：顺序反转且每辆车朝向取反
func reverseCars(cars []*Car) []*Car {
	res := make([]*Car, len(cars))
	for i, c := range cars {
		c.Flipped = !c.Flipped
		res[len(cars)-1-i] = c
	}
	return res
}

// powerRun 从一端开始的动力单元（动力车及其后连挂的煤水车）辆数
// 参数：all-是否取全部连续动力单元
func powerRun(cars []*Car, all bool) int {
	n := 0
	for n < len(cars) && cars[n].Powered {
		n++
		for n < len(cars) && cars[n].Tender {
			n++
		}
		if !all {
			break
		}
	}
	return n
}

func nonPowerRun(cars []*Car) int {
	n := 0
	for n < len(cars) && !cars[n].Powered && !cars[n].Tender {
		n++
	}
	return n
}

func consistRun(cars []*Car, consist string) int {
	n := 0
	for n < len(cars) && cars[n].Consist == consist {
		n++
	}
	return n
}

// selectUnits 按方式选择要摘下的车辆
// 返回：辆数与是否从前部摘下；辆数为0表示无法选择
func selectUnits(cars []*Car, spec timetable.UnitSpec) (int, bool) {
	rev := slices.Clone(cars)
	slices.Reverse(rev)
	switch spec.Mode {
	case timetable.DetachUnits:
		return int(spec.Units), spec.Front
	case timetable.DetachLeadingPower:
		return powerRun(cars, false), true
	case timetable.DetachTrailingPower:
		return trailingPower(rev, false), false
	case timetable.DetachAllLeadingPower:
		return powerRun(cars, true), true
	case timetable.DetachAllTrailingPower:
		return trailingPower(rev, true), false
	case timetable.DetachNonPower:
		if n := nonPowerRun(rev); n > 0 {
			return n, false
		}
		return nonPowerRun(cars), true
	case timetable.DetachConsist:
		if n := consistRun(cars, spec.Consist); n > 0 {
			return n, true
		}
		return consistRun(rev, spec.Consist), false
	}
	return 0, spec.Front
}

// trailingPower 尾部动力单元：反向车列中煤水车位于动力车之前
func trailingPower(rev []*Car, all bool) int {
	n := 0
	for n < len(rev) {
		m := n
		for m < len(rev) && rev[m].Tender {
			m++
		}
		if m >= len(rev) || !rev[m].Powered {
			break
		}
		n = m + 1
		if !all {
			break
		}
	}
	return n
}
