package entity

import (
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/clock"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
)

type ITaskContext interface {
	Clock() *clock.Clock
	SectionManager() ISectionManager
	SignalManager() ISignalManager
	TurntableManager() ITurntableManager
	TrainManager() ITrainManager
	RuntimeConfig() *config.RuntimeConfig
}
