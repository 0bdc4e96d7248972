package task

import (
	"flag"
	"fmt"
)

const (
	SelfName = "rail" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：在每个仿真步骤开始时进行准备工作
// 算法说明：
// 1. 更新时钟：增加内部步数并计算当前时间
// 2. 心跳日志：定期输出时间与活动列车数
// 3. 信号机准备：列车驶离信号机所在区段后信号恢复停车
// 4. 列车准备：到达上线时刻的列车上线，应用活动集合的增删
//
// 说明：信号机必须先于列车准备，保证本步上线的列车看到的是已恢复的信号
func (ctx *Context) prepare() {
	ctx.clock.Tick()

	if ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		log.Infof(
			"STEP: %d(%s) active trains: %d",
			ctx.clock.InternalStep,
			ctx.clock,
			ctx.trainManager.ActiveCount(),
		)
	}

	ctx.signalManager.Prepare()
	ctx.trainManager.Prepare()
}

// update 更新阶段，每步执行一次
// 功能：推进转车台与全部活动列车
// 算法说明：
// 1. 转车台先推进转向计时，列车在同一步内即可看到转向完成
// 2. 列车按活动集合的固定顺序依次更新，后更新的列车看到先更新列车本步的结果
// 3. 取出编组作业中的硬错误，返回给调用方
func (ctx *Context) update() error {
	ctx.turntableManager.Update(ctx.clock.DT)
	ctx.trainManager.Update(ctx.clock.DT)
	return ctx.trainManager.Err()
}

// Step 推进一步（不经过syncer），供嵌入使用
func (ctx *Context) Step() error {
	ctx.prepare()
	return ctx.update()
}

// Run 运行
// 功能：初始化后循环推进，直到结束步、收到关闭指令或出现硬错误
// 算法说明：
// 1. 分布式模式下每步准备完成后通知syncer，更新完成后等待syncer放行
// 2. 每隔output.snapshot.interval步保存一次快照，结束时保存最终快照
func (ctx *Context) Run() error {
	defer ctx.Close()
	// 初始化
	if err := ctx.Init(); err != nil {
		return err
	}
	interval := int32(0)
	if o := ctx.runtimeConfig.All.Output; o != nil && o.Snapshot != nil {
		interval = o.Snapshot.Interval
	}
	// init syncer
	if ctx.sidecar != nil {
		ctx.sidecar.Step(false)
	}
	for {
		ctx.prepare()
		// 通知准备阶段完成
		if ctx.sidecar != nil {
			ctx.sidecar.NotifyStepReady()
		}
		if err := ctx.update(); err != nil {
			log.Errorf("step %d: %v", ctx.clock.InternalStep, err)
			return fmt.Errorf("step %d: %w", ctx.clock.InternalStep, err)
		}
		log.Debugf("step %d: update complete", ctx.clock.InternalStep)
		if interval > 0 && ctx.clock.InternalStep%interval == 0 {
			if err := ctx.saveSnapshot(fmt.Sprintf("%08d", ctx.clock.InternalStep)); err != nil {
				log.Warnf("snapshot at step %d: %v", ctx.clock.InternalStep, err)
			}
		}
		finished := ctx.clock.Finished()
		close := finished
		if ctx.sidecar != nil {
			close = ctx.sidecar.Step(finished)
		}
		if close || finished || ctx.closed.Load() {
			break
		}
	}
	log.Infof("engine complete at %s", ctx.clock)
	if err := ctx.saveSnapshot("final"); err != nil {
		log.Warnf("final snapshot: %v", err)
	}
	return nil
}
