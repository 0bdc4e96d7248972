package entity

import "fmt"

// Direction 行驶方向
type Direction int8

const (
	Forward  Direction = 0 // 区段正方向
	Backward Direction = 1 // 区段反方向
)

// Reverse 反向
func (d Direction) Reverse() Direction {
	return 1 - d
}

// RouteElement 路径元素：区段+通过方向
type RouteElement struct {
	Section   int32     `bson:"section"`
	Direction Direction `bson:"direction"`
}

func (e RouteElement) String() string {
	return fmt.Sprintf("%d/%d", e.Section, e.Direction)
}

// Route 路径，按行驶顺序排列的区段
type Route []RouteElement

// Index 从from开始查找区段在路径中的位置，不存在返回-1
func (r Route) Index(section int32, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(r); i++ {
		if r[i].Section == section {
			return i
		}
	}
	return -1
}

// Contains 路径是否包含区段
func (r Route) Contains(section int32) bool {
	return r.Index(section, 0) >= 0
}

// Reversed 反向路径：顺序倒置且每个元素方向取反
func (r Route) Reversed() Route {
	res := make(Route, len(r))
	for i, e := range r {
		res[len(r)-1-i] = RouteElement{Section: e.Section, Direction: e.Direction.Reverse()}
	}
	return res
}

// Clone 复制路径
func (r Route) Clone() Route {
	res := make(Route, len(r))
	copy(res, r)
	return res
}

// Sections 路径上的区段索引
func (r Route) Sections() []int32 {
	res := make([]int32, len(r))
	for i, e := range r {
		res[i] = e.Section
	}
	return res
}

// Last 最后一个元素，空路径返回false
func (r Route) Last() (RouteElement, bool) {
	if len(r) == 0 {
		return RouteElement{}, false
	}
	return r[len(r)-1], true
}
