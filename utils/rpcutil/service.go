package rpcutil

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// Method 基于structpb.Struct的一元RPC方法
type Method func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// NewService 构造可注册到sidecar的服务
// 功能：将一组方法挂到同一个服务名下，每个方法对应路径 /<service>/<method>
// 参数：service-服务全名（如city.rail.v1.TrainService），methods-方法名到实现的映射
// 返回：sidecar.Register所需的构造函数
func NewService(service string, methods map[string]Method) func(opts ...connect.HandlerOption) (string, http.Handler) {
	return func(opts ...connect.HandlerOption) (string, http.Handler) {
		mux := http.NewServeMux()
		names := make([]string, 0, len(methods))
		for name := range methods {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fn := methods[name]
			procedure := fmt.Sprintf("/%s/%s", service, name)
			mux.Handle(procedure, connect.NewUnaryHandler(
				procedure,
				func(ctx context.Context, in *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
					out, err := fn(ctx, in.Msg)
					if err != nil {
						return nil, err
					}
					return connect.NewResponse(out), nil
				},
				opts...,
			))
		}
		return "/" + service + "/", mux
	}
}

// Int32 从请求中读取整数字段
func Int32(in *structpb.Struct, key string) (int32, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("missing field %s", key))
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("field %s is not a number", key))
	}
	return int32(n.NumberValue), nil
}

// Bool 从请求中读取布尔字段，缺省为false
func Bool(in *structpb.Struct, key string) bool {
	return in.GetFields()[key].GetBoolValue()
}

// Int32List 从请求中读取整数列表字段，缺省为空
func Int32List(in *structpb.Struct, key string) ([]int32, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return nil, nil
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("field %s is not a list", key))
	}
	res := make([]int32, 0, len(list.ListValue.GetValues()))
	for _, item := range list.ListValue.GetValues() {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("field %s has a non-number item", key))
		}
		res = append(res, int32(n.NumberValue))
	}
	return res, nil
}
