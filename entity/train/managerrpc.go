package train

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/rpcutil"
	"go.mongodb.org/mongo-driver/bson"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "city.rail.v1.TrainService"

// Register 将列车管理器注册到sidecar
func (m *Manager) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(ServiceName, rpcutil.NewService(ServiceName, map[string]rpcutil.Method{
		"GetTrain":    m.GetTrain,
		"ListTrains":  m.ListTrains,
		"GetSnapshot": m.GetSnapshot,
	}))
}

func (m *Manager) lookupRPC(in *structpb.Struct) (*Train, error) {
	n, err := rpcutil.Int32(in, "number")
	if err != nil {
		return nil, err
	}
	t, ok := m.byNumber[n]
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("train number does not exist"))
	}
	return t, nil
}

// summary 列车概要
func (t *Train) summary() map[string]any {
	res := map[string]any{
		"number":         t.number,
		"name":           t.name,
		"state":          t.state.String(),
		"control":        t.control.String(),
		"on_track":       t.onTrack,
		"finished":       t.finished,
		"speed":          t.speed,
		"delay":          t.delay,
		"cars":           int32(len(t.cars)),
		"subpath":        int32(t.subpath),
		"authority":      t.authority.Type.String(),
		"authority_dist": t.authority.Distance,
	}
	if t.onTrack {
		res["front_section"] = t.route[t.front.Index].Section
		res["front_offset"] = t.front.Offset
	}
	if t.action != nil {
		res["next_action"] = t.action.Type.String()
		res["next_action_dist"] = t.remaining(t.action)
	}
	if s := t.headStop(); s != nil {
		res["next_stop"] = s.PlatformName
	}
	return res
}

// GetTrain RPC接口：获取列车概要
func (m *Manager) GetTrain(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	t, err := m.lookupRPC(in)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(t.summary())
}

// ListTrains RPC接口：列出活动列车
// 参数：all=true时列出全部列车；numbers非空时只列出指定车次，不存在的车次在missing中返回
func (m *Manager) ListTrains(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	numbers, err := rpcutil.Int32List(in, "numbers")
	if err != nil {
		return nil, err
	}
	trains := m.active.Data()
	if rpcutil.Bool(in, "all") || len(numbers) > 0 {
		trains = m.trains
	}
	trains, missing := utils.Find(m.byNumber, trains, numbers)
	return structpb.NewStruct(map[string]any{
		"trains":  lo.Map(trains, func(t *Train, _ int) any { return t.summary() }),
		"missing": lo.Map(missing, func(n int32, _ int) any { return n }),
	})
}

// GetSnapshot RPC接口：获取列车完整状态快照
func (m *Manager) GetSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	t, err := m.lookupRPC(in)
	if err != nil {
		return nil, err
	}
	data, err := bson.MarshalExtJSON(t.Snapshot(), false, false)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	res := &structpb.Struct{}
	if err := protojson.Unmarshal(data, res); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return res, nil
}
