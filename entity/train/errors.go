package train

import "errors"

// ErrNoDrivableLocomotive 玩家列车没有可驾驶的动力车
var ErrNoDrivableLocomotive = errors.New("no drivable locomotive in player train")
