package task

import (
	"context"
	"fmt"
	"sync/atomic"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/clock"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/section"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/turntable"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/output"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/randengine"
)

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态，替代全局变量
// 说明：管理时钟、区段、信号机、转车台、列车四类管理器以及快照存储
type Context struct {

	// 任务名
	job string
	// 本次运行的唯一标识，写入快照key
	runID string
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock
	// 随机数引擎（重新起动延迟）
	rnd *randengine.Engine

	// 辅助程序，处理分布式模式下与syncer、其他服务的交互
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}
	// 是否由本上下文启动sidecar服务
	serving bool

	// 区段管理器
	sectionManager *section.SectionManager
	// 信号机管理器
	signalManager *signal.SignalManager
	// 转车台管理器
	turntableManager *turntable.TurntableManager
	// 列车管理器
	trainManager *train.Manager

	// 运行时配置
	runtimeConfig *config.RuntimeConfig
	// 快照存储，未配置时为nil
	store output.Store

	// 用于初始化的输入
	initRes *input.Input
}

// NewContext 创建新的仿真任务上下文
// 功能：加载输入数据并创建各类管理器
// 参数：
//   - job: 任务名称
//   - c: 配置对象
//   - in: 已加载的输入，为nil时按配置加载
//   - sidecar: sidecar实例，为nil时以独立模式运行
//   - startSidecarServe: 是否启动sidecar服务
//
// 返回：初始化完成的Context实例
// 算法说明：
// 1. 创建时钟与随机数引擎，生成本次运行的标识
// 2. 加载线路与时刻表
// 3. 创建区段、信号机、转车台、列车管理器
// 4. 打开快照存储
// 5. 注册RPC服务到sidecar并启动服务（如果需要）
func NewContext(
	job string,
	c config.Config,
	in *input.Input,
	sidecar *syncer.Sidecar,
	startSidecarServe bool,
) (*Context, error) {
	ctx := &Context{
		job:            job,
		runID:          uuid.NewString(),
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
	}
	ctx.clock = clock.New(c.Control.Step)
	ctx.rnd = randengine.New(c.Control.Seed)

	if in == nil {
		in = input.Init(c)
	}
	ctx.initRes = in

	ctx.runtimeConfig = config.NewRuntimeConfig(c)

	ctx.sectionManager = section.NewManager(ctx)
	ctx.signalManager = signal.NewManager(ctx)
	ctx.turntableManager = turntable.NewManager(ctx)
	ctx.trainManager = train.NewManager(ctx, ctx.rnd)

	store, err := output.New(c.Output)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	ctx.store = store

	if ctx.sidecar != nil {
		ctx.clock.Register(ctx.sidecar)
		ctx.signalManager.Register(ctx.sidecar)
		ctx.trainManager.Register(ctx.sidecar)

		// sidecar协程，用于提供gRPC服务
		if startSidecarServe {
			ctx.serving = true
			go func() {
				err := ctx.sidecar.Serve()
				if err != nil {
					log.Panicf("failed to serve: %v", err)
				}
				ctx.sidecarCloseCh <- struct{}{}
			}()
		}
	}
	log.Infof("job %s run %s, seed %d", job, ctx.runID, ctx.rnd.Seed())
	return ctx, nil
}

func (ctx *Context) GetInput() *input.Input {
	return ctx.initRes
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) SectionManager() entity.ISectionManager {
	return ctx.sectionManager
}

func (ctx *Context) SignalManager() entity.ISignalManager {
	return ctx.signalManager
}

func (ctx *Context) TurntableManager() entity.ITurntableManager {
	return ctx.turntableManager
}

func (ctx *Context) TrainManager() entity.ITrainManager {
	return ctx.trainManager
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// RunID 本次运行的标识
func (ctx *Context) RunID() string {
	return ctx.runID
}

// Init 初始化
// 功能：按依赖顺序初始化各管理器，配置了恢复key时从快照恢复
// 算法说明：
// 1. 区段（含站台、信号机位置）先于信号机与转车台完成初始化
// 2. 列车最后初始化，解析列车间引用并排队上线
// 3. 从快照恢复时钟与全部列车状态
func (ctx *Context) Init() error {
	ctx.clock.Init()

	layout := ctx.initRes.Layout
	ctx.sectionManager.Init(layout.Sections, layout.Platforms, layout.Signals)
	ctx.signalManager.Init(layout.Signals)
	ctx.turntableManager.Init(layout.Turntables)
	ctx.trainManager.Init(ctx.initRes.Timetable.Trains)

	if o := ctx.runtimeConfig.All.Output; o != nil && o.Restore != "" {
		if err := ctx.restore(o.Restore); err != nil {
			return fmt.Errorf("restore %s: %w", o.Restore, err)
		}
	}
	return nil
}

// Snapshot 一次完整的仿真快照
type Snapshot struct {
	Job    string                 `bson:"job"`
	RunID  string                 `bson:"run_id"`
	Step   int32                  `bson:"step"`
	Trains *train.ManagerSnapshot `bson:"trains"`
}

func (ctx *Context) snapshotKey(suffix string) string {
	return fmt.Sprintf("%s.%s.%s", ctx.job, ctx.runID, suffix)
}

// saveSnapshot 保存当前状态，未配置存储时跳过
func (ctx *Context) saveSnapshot(suffix string) error {
	if ctx.store == nil {
		return nil
	}
	key := ctx.snapshotKey(suffix)
	s := &Snapshot{
		Job:    ctx.job,
		RunID:  ctx.runID,
		Step:   ctx.clock.InternalStep,
		Trains: ctx.trainManager.Snapshot(),
	}
	if err := ctx.store.Save(context.Background(), key, s); err != nil {
		return err
	}
	log.Infof("snapshot %s saved at %s", key, ctx.clock)
	return nil
}

// restore 从指定key的快照恢复
func (ctx *Context) restore(key string) error {
	if ctx.store == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	var s Snapshot
	if err := ctx.store.Load(context.Background(), key, &s); err != nil {
		return err
	}
	if s.Trains == nil {
		return fmt.Errorf("snapshot %s has no train data", key)
	}
	ctx.clock.SetStep(s.Step)
	if err := ctx.trainManager.Restore(s.Trains); err != nil {
		return err
	}
	log.Infof("restored from %s (run %s) at %s", key, s.RunID, ctx.clock)
	return nil
}

// Stop 请求在当前步结束后停止
func (ctx *Context) Stop() {
	ctx.closed.Store(true)
}

func (ctx *Context) Close() {
	if ctx.store != nil {
		if err := ctx.store.Close(context.Background()); err != nil {
			log.Warnf("close snapshot store: %v", err)
		}
		ctx.store = nil
	}
	if ctx.sidecar == nil || !ctx.serving {
		return
	}
	ctx.serving = false
	ctx.sidecar.Close()
	// wait for graceful stop
	<-ctx.sidecarCloseCh
}
