package input

// 线路与时刻表输入数据结构，同时支持yaml文件与MongoDB（bson）两种来源

// Section 轨道区段
type Section struct {
	Index  int32   `yaml:"index" bson:"index"`
	Length float64 `yaml:"length" bson:"length"`
	Kind   string  `yaml:"kind,omitempty" bson:"kind,omitempty"` // normal/junction/crossover/end_of_track/turntable
	MaxV   float64 `yaml:"max_v,omitempty" bson:"max_v,omitempty"`
}

// Platform 站台
// 说明：Sections按正方向（direction=0）排列，StartOffset为站台起点在首区段内的偏移，
// EndOffset为站台终点在末区段内的偏移，均以正方向度量
type Platform struct {
	ID          int32   `yaml:"id" bson:"id"`
	Name        string  `yaml:"name" bson:"name"`
	Station     string  `yaml:"station" bson:"station"`
	Sections    []int32 `yaml:"sections" bson:"sections"`
	StartOffset float64 `yaml:"start_offset" bson:"start_offset"`
	EndOffset   float64 `yaml:"end_offset" bson:"end_offset"`
	Length      float64 `yaml:"length,omitempty" bson:"length,omitempty"` // 为0时由区段推算
	MinStopTime float64 `yaml:"min_stop_time,omitempty" bson:"min_stop_time,omitempty"`
}

// Signal 信号机，位于区段在Direction方向上的末端
type Signal struct {
	ID        int32 `yaml:"id" bson:"id"`
	Section   int32 `yaml:"section" bson:"section"`
	Direction int8  `yaml:"direction" bson:"direction"`
}

// Turntable 转车台
type Turntable struct {
	Section    int32   `yaml:"section" bson:"section"`
	RotateTime float64 `yaml:"rotate_time" bson:"rotate_time"` // 转向耗时（秒）
}

// Layout 线路
type Layout struct {
	Sections   []Section   `yaml:"sections" bson:"sections"`
	Platforms  []Platform  `yaml:"platforms,omitempty" bson:"platforms,omitempty"`
	Signals    []Signal    `yaml:"signals,omitempty" bson:"signals,omitempty"`
	Turntables []Turntable `yaml:"turntables,omitempty" bson:"turntables,omitempty"`
}

// Qualifier 命令限定词，如maxdelay=5
type Qualifier struct {
	Name   string   `yaml:"name" bson:"name"`
	Values []string `yaml:"values,omitempty" bson:"values,omitempty"`
}

// Command 已分词的时刻表命令，如 $wait other /maxdelay=5
type Command struct {
	Name       string      `yaml:"name" bson:"name"`
	Values     []string    `yaml:"values,omitempty" bson:"values,omitempty"`
	Qualifiers []Qualifier `yaml:"qualifiers,omitempty" bson:"qualifiers,omitempty"`
}

// Car 车辆
type Car struct {
	ID      string  `yaml:"id" bson:"id"`
	Length  float64 `yaml:"length" bson:"length"`
	Powered bool    `yaml:"powered,omitempty" bson:"powered,omitempty"`
	Tender  bool    `yaml:"tender,omitempty" bson:"tender,omitempty"`
	Consist string  `yaml:"consist,omitempty" bson:"consist,omitempty"`
}

// RouteElement 路径元素
type RouteElement struct {
	Section   int32 `yaml:"section" bson:"section"`
	Direction int8  `yaml:"direction" bson:"direction"`
}

// ReversalPoint 折返点（可选），列车尾部越过该点即可折返
type ReversalPoint struct {
	Section int32   `yaml:"section" bson:"section"`
	Offset  float64 `yaml:"offset" bson:"offset"`
}

// Path 子路径
type Path struct {
	Route     []RouteElement `yaml:"route" bson:"route"`
	ReverseAt *ReversalPoint `yaml:"reverse_at,omitempty" bson:"reverse_at,omitempty"`
}

// Stop 停站
type Stop struct {
	Platform  int32     `yaml:"platform" bson:"platform"`
	Arrival   string    `yaml:"arrival,omitempty" bson:"arrival,omitempty"`
	Departure string    `yaml:"departure,omitempty" bson:"departure,omitempty"`
	Commands  []Command `yaml:"commands,omitempty" bson:"commands,omitempty"`
}

// Dispose 终到处置
type Dispose struct {
	Forms    string    `yaml:"forms,omitempty" bson:"forms,omitempty"`
	Static   bool      `yaml:"static,omitempty" bson:"static,omitempty"`
	Commands []Command `yaml:"commands,omitempty" bson:"commands,omitempty"`
}

// Train 时刻表中的一趟列车
type Train struct {
	Number    int32     `yaml:"number" bson:"number"`
	Name      string    `yaml:"name" bson:"name"`
	StartTime string    `yaml:"start,omitempty" bson:"start,omitempty"`
	Triggered bool      `yaml:"triggered,omitempty" bson:"triggered,omitempty"`
	Freight   bool      `yaml:"freight,omitempty" bson:"freight,omitempty"`
	Player    bool      `yaml:"player,omitempty" bson:"player,omitempty"`
	MaxSpeed  float64   `yaml:"max_speed,omitempty" bson:"max_speed,omitempty"`
	Cars      []Car     `yaml:"cars" bson:"cars"`
	Paths     []Path    `yaml:"paths" bson:"paths"`
	Stops     []Stop    `yaml:"stops,omitempty" bson:"stops,omitempty"`
	Commands  []Command `yaml:"commands,omitempty" bson:"commands,omitempty"`
	Dispose   Dispose   `yaml:"dispose,omitempty" bson:"dispose,omitempty"`
}

// Timetable 时刻表
type Timetable struct {
	Trains []Train `yaml:"trains" bson:"trains"`
}
