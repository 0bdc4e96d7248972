package config

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息，补全列车控制常量的默认值
// 说明：将YAML配置转换为运行时可用的配置对象
type RuntimeConfig struct {
	All   Config         // 全部配置
	C     Control        // 全局控制配置
	Train TrainConstants // 补全默认值后的列车常量
}

// DefaultTrainConstants 列车控制常量默认值
func DefaultTrainConstants() TrainConstants {
	return TrainConstants{
		ClearingDistance:      30,
		CloseupDistance:       3,
		JunctionOverlap:       20,
		StandardOverlap:       15,
		EndOfRouteDistance:    150,
		MaxCheckDistance:      5000,
		SignalRequestDistance: 1000,

		StationCreep:  1,
		SignalCreep:   10,
		ClearingCreep: 5,

		CreepSpeed:    2.5,
		Hysteresis:    0.5,
		StopTolerance: 1,
		StopSpeed:     0.1,

		KeepDistanceStaticPassenger: 10,
		KeepDistanceStaticFreight:   50,
		KeepDistanceMoving:          300,
		KeepDistanceCloseup:         2.5,
		CouplingTolerance:           2,
		MaxFollowSpeed:              15,

		MaxAccelPassenger: 1.0,
		MaxAccelFreight:   0.5,
		MaxDecelPassenger: 1.0,
		MaxDecelFreight:   0.8,
		HighSpeedLow:      40,
		HighSpeedHigh:     55,

		ThrottleStep:    10,
		BrakeStep:       10,
		StrongBrakeStep: 50,

		DefaultStopTime: 30,

		StationRestart:   RestartDelay{Fixed: 0, Random: 10},
		FollowRestart:    RestartDelay{Fixed: 5, Random: 10},
		TurntableRestart: RestartDelay{Fixed: 5, Random: 5},
		DefaultRestart:   RestartDelay{Fixed: 0, Random: 5},
	}
}

// fillDefaults 用默认值补全未设置的常量
func fillDefaults(c TrainConstants) TrainConstants {
	d := DefaultTrainConstants()
	fill := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&c.ClearingDistance, d.ClearingDistance)
	fill(&c.CloseupDistance, d.CloseupDistance)
	fill(&c.JunctionOverlap, d.JunctionOverlap)
	fill(&c.StandardOverlap, d.StandardOverlap)
	fill(&c.EndOfRouteDistance, d.EndOfRouteDistance)
	fill(&c.MaxCheckDistance, d.MaxCheckDistance)
	fill(&c.SignalRequestDistance, d.SignalRequestDistance)
	fill(&c.StationCreep, d.StationCreep)
	fill(&c.SignalCreep, d.SignalCreep)
	fill(&c.ClearingCreep, d.ClearingCreep)
	fill(&c.CreepSpeed, d.CreepSpeed)
	fill(&c.Hysteresis, d.Hysteresis)
	fill(&c.StopTolerance, d.StopTolerance)
	fill(&c.StopSpeed, d.StopSpeed)
	fill(&c.KeepDistanceStaticPassenger, d.KeepDistanceStaticPassenger)
	fill(&c.KeepDistanceStaticFreight, d.KeepDistanceStaticFreight)
	fill(&c.KeepDistanceMoving, d.KeepDistanceMoving)
	fill(&c.KeepDistanceCloseup, d.KeepDistanceCloseup)
	fill(&c.CouplingTolerance, d.CouplingTolerance)
	fill(&c.MaxFollowSpeed, d.MaxFollowSpeed)
	fill(&c.MaxAccelPassenger, d.MaxAccelPassenger)
	fill(&c.MaxAccelFreight, d.MaxAccelFreight)
	fill(&c.MaxDecelPassenger, d.MaxDecelPassenger)
	fill(&c.MaxDecelFreight, d.MaxDecelFreight)
	fill(&c.HighSpeedLow, d.HighSpeedLow)
	fill(&c.HighSpeedHigh, d.HighSpeedHigh)
	fill(&c.ThrottleStep, d.ThrottleStep)
	fill(&c.BrakeStep, d.BrakeStep)
	fill(&c.StrongBrakeStep, d.StrongBrakeStep)
	fill(&c.DefaultStopTime, d.DefaultStopTime)
	if c.StationRestart == (RestartDelay{}) {
		c.StationRestart = d.StationRestart
	}
	if c.FollowRestart == (RestartDelay{}) {
		c.FollowRestart = d.FollowRestart
	}
	if c.TurntableRestart == (RestartDelay{}) {
		c.TurntableRestart = d.TurntableRestart
	}
	if c.DefaultRestart == (RestartDelay{}) {
		c.DefaultRestart = d.DefaultRestart
	}
	return c
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象，补全缺省的列车控制常量
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{}

	rc.All = config
	rc.C = config.Control
	rc.Train = fillDefaults(config.Train)

	return rc
}
