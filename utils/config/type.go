package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义数据输入路径的配置结构，支持多种数据源
// 说明：文件路径优先级高于MongoDB
type InputPath struct {
	DB   string `yaml:"db"`             // 数据库名
	Col  string `yaml:"col"`            // 集合名
	File string `yaml:"file,omitempty"` // 文件路径（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// Input 指定模拟器所有输入数据的配置项
// 功能：定义仿真系统的所有输入数据配置
// 说明：包含线路（区段、站台、信号机、转车台）与时刻表两类输入
type Input struct {
	URI       string    `yaml:"uri"`       // MongoDB连接字符串
	Layout    InputPath `yaml:"layout"`    // 线路
	Timetable InputPath `yaml:"timetable"` // 时刻表
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真时间控制参数
// 说明：控制仿真的时间范围、步长和精度
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// Control 模拟器控制配置
// 功能：定义仿真系统的核心控制参数
type Control struct {
	Step ControlStep `yaml:"step"`
	Seed uint64      `yaml:"seed,omitempty"` // 随机数种子（重启延迟抖动）
}

// RestartDelay 列车重新起动延迟配置
// 说明：实际延迟 = Fixed + Random * U[0,1)
type RestartDelay struct {
	Fixed  float64 `yaml:"fixed"`
	Random float64 `yaml:"random"`
}

// TrainConstants 列车控制常量
// 功能：集中定义列车运行控制用到的所有距离、速度与加减速度常量
// 说明：未填写的字段在NewRuntimeConfig中使用DefaultTrainConstants的值
type TrainConstants struct {
	ClearingDistance      float64 `yaml:"clearing_distance,omitempty"`       // 标准出清距离（米）
	CloseupDistance       float64 `yaml:"closeup_distance,omitempty"`        // closeup时允许的最小余量（米）
	JunctionOverlap       float64 `yaml:"junction_overlap,omitempty"`        // 道岔保护余量（米）
	StandardOverlap       float64 `yaml:"standard_overlap,omitempty"`        // 标准保护区段长度（米）
	EndOfRouteDistance    float64 `yaml:"end_of_route_distance,omitempty"`   // 判定到达终点的固定距离（米）
	MaxCheckDistance      float64 `yaml:"max_check_distance,omitempty"`      // 行车许可最大检查距离（米）
	SignalRequestDistance float64 `yaml:"signal_request_distance,omitempty"` // 请求开放信号的距离（米）

	StationCreep  float64 `yaml:"station_creep,omitempty"`  // 进站停车蠕行余量（米）
	SignalCreep   float64 `yaml:"signal_creep,omitempty"`   // 信号机前停车蠕行余量（米）
	ClearingCreep float64 `yaml:"clearing_creep,omitempty"` // 一般停车蠕行余量（米）

	CreepSpeed    float64 `yaml:"creep_speed,omitempty"`    // 蠕行速度（米/秒）
	Hysteresis    float64 `yaml:"hysteresis,omitempty"`     // 速度带宽（米/秒）
	StopTolerance float64 `yaml:"stop_tolerance,omitempty"` // 停车位置容差（米）
	StopSpeed     float64 `yaml:"stop_speed,omitempty"`     // 视为停稳的速度（米/秒）

	KeepDistanceStaticPassenger float64 `yaml:"keep_distance_static_passenger,omitempty"` // 客车与静止前车保持距离（米）
	KeepDistanceStaticFreight   float64 `yaml:"keep_distance_static_freight,omitempty"`   // 货车与静止前车保持距离（米）
	KeepDistanceMoving          float64 `yaml:"keep_distance_moving,omitempty"`           // 与运动前车保持距离（米）
	KeepDistanceCloseup         float64 `yaml:"keep_distance_closeup,omitempty"`          // callon/closeup时的保持距离（米）
	CouplingTolerance           float64 `yaml:"coupling_tolerance,omitempty"`             // 连挂位置容差（米）
	MaxFollowSpeed              float64 `yaml:"max_follow_speed,omitempty"`               // 跟驰最大速度（米/秒）

	MaxAccelPassenger float64 `yaml:"max_accel_passenger,omitempty"` // 客车最大加速度
	MaxAccelFreight   float64 `yaml:"max_accel_freight,omitempty"`   // 货车最大加速度
	MaxDecelPassenger float64 `yaml:"max_decel_passenger,omitempty"` // 客车常用减速度
	MaxDecelFreight   float64 `yaml:"max_decel_freight,omitempty"`   // 货车常用减速度
	HighSpeedLow      float64 `yaml:"high_speed_low,omitempty"`      // 第一档高速阈值（米/秒）
	HighSpeedHigh     float64 `yaml:"high_speed_high,omitempty"`     // 第二档高速阈值（米/秒）

	ThrottleStep    float64 `yaml:"throttle_step,omitempty"`     // 每步牵引调整量（%）
	BrakeStep       float64 `yaml:"brake_step,omitempty"`        // 每步制动调整量（%）
	StrongBrakeStep float64 `yaml:"strong_brake_step,omitempty"` // 强制动调整量（%）

	DefaultStopTime float64 `yaml:"default_stop_time,omitempty"` // 无时刻时的最小停站时间（秒）

	StationRestart   RestartDelay `yaml:"station_restart,omitempty"`
	FollowRestart    RestartDelay `yaml:"follow_restart,omitempty"`
	TurntableRestart RestartDelay `yaml:"turntable_restart,omitempty"`
	DefaultRestart   RestartDelay `yaml:"default_restart,omitempty"`
}

// OutputPath 快照输出位置
// 说明：Dir非空时写入本地文件，否则写入MongoDB
type OutputPath struct {
	DB       string `yaml:"db"`
	Col      string `yaml:"col"`
	Dir      string `yaml:"dir,omitempty"`
	Interval int32  `yaml:"interval"` // 快照间隔步数，0表示只在结束时保存
}

// GetDb 获取数据库名
func (p OutputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p OutputPath) GetColl() string {
	return p.Col
}

// Output 输出配置
type Output struct {
	URI      string      `yaml:"uri,omitempty"`      // MongoDB连接字符串
	Snapshot *OutputPath `yaml:"snapshot,omitempty"` // 列车快照
	Restore  string      `yaml:"restore,omitempty"`  // 启动时恢复的快照key
}

// Config YAML配置文件的根结构
// 功能：定义整个仿真系统的配置结构
// 说明：包含输入、控制、列车常量、输出等所有配置项
type Config struct {
	Input   Input          `yaml:"input"`            // 输入
	Control Control        `yaml:"control"`          // 模拟过程控制
	Train   TrainConstants `yaml:"train,omitempty"`  // 列车控制常量
	Output  *Output        `yaml:"output,omitempty"` // 输出
}
