package signal

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/rpcutil"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "city.rail.v1.SignalService"

// Register 将信号机管理器注册到sidecar
func (m *SignalManager) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(ServiceName, rpcutil.NewService(ServiceName, map[string]rpcutil.Method{
		"GetSignal":     m.GetSignal,
		"SetSignalHold": m.SetSignalHold,
	}))
}

// GetSignal RPC接口：获取信号机状态
func (m *SignalManager) GetSignal(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := rpcutil.Int32(in, "id")
	if err != nil {
		return nil, err
	}
	s, ok := m.data[id]
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("signal id does not exist"))
	}
	return structpb.NewStruct(map[string]any{
		"id":          s.id,
		"section":     s.section,
		"direction":   int32(s.direction),
		"aspect":      s.aspect.String(),
		"cleared_for": s.clearedFor,
		"held":        s.IsHeld(),
	})
}

// SetSignalHold RPC接口：外部扣停或解除扣停，下一步Prepare时生效
func (m *SignalManager) SetSignalHold(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := rpcutil.Int32(in, "id")
	if err != nil {
		return nil, err
	}
	s, ok := m.data[id]
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("signal id does not exist"))
	}
	hold := rpcutil.Bool(in, "hold")
	m.bufferMtx.Lock()
	s.holdBuffer = &hold
	m.bufferMtx.Unlock()
	return &structpb.Struct{}, nil
}
