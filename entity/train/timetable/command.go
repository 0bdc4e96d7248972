package timetable

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

var (
	// ErrUnknownCommand 无法识别的命令，命令被忽略
	ErrUnknownCommand = errors.New("unknown timetable command")
	// ErrBadQualifier 无法识别或取值错误的限定词，限定词被跳过
	ErrBadQualifier = errors.New("bad command qualifier")
	// ErrMissingValue 命令缺少必需的参数，命令被忽略
	ErrMissingValue = errors.New("command value missing")
)

// WaitCommand 等待类命令（wait/follow/connect/forcewait/waitany）
type WaitCommand struct {
	Kind       WaitKind
	Other      string
	MaxDelay   float64
	OwnDelay   float64
	Trigger    float64
	EndTrigger float64
	NotStarted bool
	AtStart    bool
	Direction  DirectionFilter
	Hold       float64
	Forced     bool
	Path       []int32
}

// AttachCommand attach命令
type AttachCommand struct {
	Other   string
	SetBack bool
}

// DetachCommand detach命令
type DetachCommand struct {
	Spec  UnitSpec
	Forms string
}

// TransferCommand transfer命令
type TransferCommand struct {
	Other string
	Give  bool
	Spec  UnitSpec
}

// ActivateCommand activate命令
type ActivateCommand struct {
	Other  string
	Depart bool // 出发时触发（否则到达时触发）
}

// StopFlags 停站相关命令
type StopFlags struct {
	Terminal         bool
	Closeup          bool
	NoWaitSignal     bool
	WaitSignal       bool
	NoClaim          bool
	CallOn           bool
	EndStop          bool
	ExtendToSignal   bool
	RestrictToSignal bool
	KeepClearFront   float64
	KeepClearRear    float64
	ForcePosition    bool
	HoldMode         HoldMode
	StopTime         float64 // 秒，None表示未设置
}

// Parsed 一组命令的解析结果
type Parsed struct {
	Waits     []WaitCommand
	Attach    *AttachCommand
	Detaches  []DetachCommand
	PickUps   []string
	Transfers []TransferCommand
	Activates []ActivateCommand
	Stop      StopFlags
}

// Parse 解析已分词的时刻表命令
// 功能：将命令与限定词转换为结构化数据
// 参数：cmds-命令列表
// 返回：解析结果与所有非致命错误（未知命令、错误限定词），调用方记录后继续
// 说明：未知命令被忽略；取值错误的限定词被跳过，对应字段保持缺省值
func Parse(cmds []input.Command) (Parsed, []error) {
	res := Parsed{Stop: StopFlags{StopTime: None}}
	var errs []error
	report := func(err error) {
		errs = append(errs, err)
	}
	for _, cmd := range cmds {
		name := strings.ToLower(strings.TrimPrefix(cmd.Name, "$"))
		switch name {
		case "wait", "follow", "connect", "forcewait", "waitany":
			w, ok := parseWait(name, cmd, report)
			if ok {
				res.Waits = append(res.Waits, w)
			}
		case "attach":
			if len(cmd.Values) == 0 {
				report(fmt.Errorf("%w: attach", ErrMissingValue))
				continue
			}
			a := &AttachCommand{Other: cmd.Values[0]}
			for _, q := range cmd.Qualifiers {
				switch strings.ToLower(q.Name) {
				case "setback":
					a.SetBack = true
				default:
					report(badQualifier(name, q))
				}
			}
			if res.Attach != nil {
				log.Warnf("more than one attach command, keep %s", a.Other)
			}
			res.Attach = a
		case "detach":
			d := DetachCommand{Spec: UnitSpec{Mode: DetachUnits, Units: 1}}
			for _, q := range cmd.Qualifiers {
				if parseUnitSpec(&d.Spec, q, report) {
					continue
				}
				if strings.ToLower(q.Name) == "forms" && len(q.Values) > 0 {
					d.Forms = q.Values[0]
					continue
				}
				report(badQualifier(name, q))
			}
			if d.Forms == "" && len(cmd.Values) > 0 {
				d.Forms = cmd.Values[0]
			}
			if d.Forms == "" {
				report(fmt.Errorf("%w: detach without forms", ErrMissingValue))
				continue
			}
			res.Detaches = append(res.Detaches, d)
		case "pickup":
			if len(cmd.Values) == 0 {
				report(fmt.Errorf("%w: pickup", ErrMissingValue))
				continue
			}
			res.PickUps = append(res.PickUps, cmd.Values[0])
		case "transfer":
			if len(cmd.Values) == 0 {
				report(fmt.Errorf("%w: transfer", ErrMissingValue))
				continue
			}
			t := TransferCommand{Other: cmd.Values[0], Give: true, Spec: UnitSpec{Mode: DetachUnits, Units: 1}}
			for _, q := range cmd.Qualifiers {
				if parseUnitSpec(&t.Spec, q, report) {
					continue
				}
				switch strings.ToLower(q.Name) {
				case "give":
					t.Give = true
				case "take":
					t.Give = false
				default:
					report(badQualifier(name, q))
				}
			}
			res.Transfers = append(res.Transfers, t)
		case "activate":
			if len(cmd.Values) == 0 {
				report(fmt.Errorf("%w: activate", ErrMissingValue))
				continue
			}
			a := ActivateCommand{Other: cmd.Values[0]}
			for _, q := range cmd.Qualifiers {
				if strings.ToLower(q.Name) == "depart" {
					a.Depart = true
				} else {
					report(badQualifier(name, q))
				}
			}
			res.Activates = append(res.Activates, a)
		case "terminal":
			res.Stop.Terminal = true
		case "closeup":
			res.Stop.Closeup = true
		case "nowaitsignal":
			res.Stop.NoWaitSignal = true
		case "waitsignal":
			res.Stop.WaitSignal = true
		case "noclaim":
			res.Stop.NoClaim = true
		case "callon":
			res.Stop.CallOn = true
		case "endstop":
			res.Stop.EndStop = true
		case "extendplatformtosignal":
			res.Stop.ExtendToSignal = true
		case "restrictplatformtosignal":
			res.Stop.RestrictToSignal = true
		case "hold":
			res.Stop.HoldMode = HoldDefault
		case "nohold":
			res.Stop.HoldMode = HoldNone
		case "forcehold":
			res.Stop.HoldMode = HoldForce
		case "keepclear":
			for _, q := range cmd.Qualifiers {
				switch strings.ToLower(q.Name) {
				case "front":
					if v, err := qualifierFloat(q); err == nil {
						res.Stop.KeepClearFront = v
					} else {
						report(err)
					}
				case "rear":
					if v, err := qualifierFloat(q); err == nil {
						res.Stop.KeepClearRear = v
					} else {
						report(err)
					}
				case "force":
					res.Stop.ForcePosition = true
				default:
					report(badQualifier(name, q))
				}
			}
		case "stoptime":
			if len(cmd.Values) == 0 {
				report(fmt.Errorf("%w: stoptime", ErrMissingValue))
				continue
			}
			v, err := strconv.ParseFloat(cmd.Values[0], 64)
			if err != nil || v < 0 {
				report(fmt.Errorf("%w: stoptime %q", ErrBadQualifier, cmd.Values[0]))
				continue
			}
			res.Stop.StopTime = v
		default:
			report(fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name))
		}
	}
	return res, errs
}

// parseWait 解析等待类命令
func parseWait(name string, cmd input.Command, report func(error)) (WaitCommand, bool) {
	w := WaitCommand{
		MaxDelay:   None,
		OwnDelay:   None,
		Trigger:    None,
		EndTrigger: None,
		Direction:  DirectionSame,
	}
	switch name {
	case "wait":
		w.Kind = WaitWait
	case "follow":
		w.Kind = WaitFollow
	case "connect":
		w.Kind = WaitConnect
	case "forcewait":
		w.Kind = WaitConnect
		w.Forced = true
	case "waitany":
		w.Kind = WaitAny
	}
	if w.Kind == WaitAny {
		for _, v := range cmd.Values {
			idx, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				report(fmt.Errorf("%w: waitany section %q", ErrBadQualifier, v))
				continue
			}
			w.Path = append(w.Path, int32(idx))
		}
		if len(w.Path) == 0 {
			report(fmt.Errorf("%w: waitany without path", ErrMissingValue))
			return w, false
		}
	} else {
		if len(cmd.Values) == 0 {
			report(fmt.Errorf("%w: %s", ErrMissingValue, name))
			return w, false
		}
		w.Other = cmd.Values[0]
	}
	for _, q := range cmd.Qualifiers {
		var err error
		switch strings.ToLower(q.Name) {
		case "maxdelay":
			w.MaxDelay, err = qualifierMinutes(q)
		case "owndelay":
			w.OwnDelay, err = qualifierMinutes(q)
		case "hold":
			w.Hold, err = qualifierMinutes(q)
		case "trigger":
			w.Trigger, err = qualifierTime(q)
		case "endtrigger":
			w.EndTrigger, err = qualifierTime(q)
		case "notstarted":
			w.NotStarted = true
		case "atstart":
			w.AtStart = true
		case "both":
			w.Direction = DirectionBoth
		case "opposite":
			w.Direction = DirectionOpposite
		default:
			err = badQualifier(name, q)
		}
		if err != nil {
			report(err)
		}
	}
	// 限定词取值错误时回到缺省值
	if w.MaxDelay < 0 {
		w.MaxDelay = None
	}
	if w.OwnDelay < 0 {
		w.OwnDelay = None
	}
	if w.Hold < 0 {
		w.Hold = 0
	}
	return w, true
}

// parseUnitSpec 解析选择车辆的限定词，不是此类限定词时返回false
func parseUnitSpec(spec *UnitSpec, q input.Qualifier, report func(error)) bool {
	switch strings.ToLower(q.Name) {
	case "units":
		v, err := qualifierFloat(q)
		if err != nil || v < 1 {
			report(fmt.Errorf("%w: units %v", ErrBadQualifier, q.Values))
			return true
		}
		spec.Mode = DetachUnits
		spec.Units = int32(v)
	case "front":
		spec.Front = true
	case "rear":
		spec.Front = false
	case "power":
		mode := "leading"
		if len(q.Values) > 0 {
			mode = strings.ToLower(q.Values[0])
		}
		switch mode {
		case "leading":
			spec.Mode = DetachLeadingPower
		case "trailing":
			spec.Mode = DetachTrailingPower
		case "allleading":
			spec.Mode = DetachAllLeadingPower
		case "alltrailing":
			spec.Mode = DetachAllTrailingPower
		default:
			report(fmt.Errorf("%w: power=%s", ErrBadQualifier, mode))
		}
	case "nonpower":
		spec.Mode = DetachNonPower
	case "consist":
		if len(q.Values) == 0 {
			report(fmt.Errorf("%w: consist without name", ErrBadQualifier))
			return true
		}
		spec.Mode = DetachConsist
		spec.Consist = q.Values[0]
	default:
		return false
	}
	return true
}

func badQualifier(cmd string, q input.Qualifier) error {
	return fmt.Errorf("%w: %s /%s", ErrBadQualifier, cmd, q.Name)
}

func qualifierFloat(q input.Qualifier) (float64, error) {
	if len(q.Values) == 0 {
		return 0, fmt.Errorf("%w: %s without value", ErrBadQualifier, q.Name)
	}
	v, err := strconv.ParseFloat(q.Values[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadQualifier, q.Name, q.Values[0])
	}
	return v, nil
}

// qualifierMinutes 以分钟给出的限定词，返回秒；错误时返回None
func qualifierMinutes(q input.Qualifier) (float64, error) {
	v, err := qualifierFloat(q)
	if err != nil || v < 0 {
		if err == nil {
			err = fmt.Errorf("%w: %s=%v", ErrBadQualifier, q.Name, v)
		}
		return None, err
	}
	return v * 60, nil
}

// qualifierTime 以时刻给出的限定词，返回当天秒数；错误时返回None
func qualifierTime(q input.Qualifier) (float64, error) {
	if len(q.Values) == 0 {
		return None, fmt.Errorf("%w: %s without value", ErrBadQualifier, q.Name)
	}
	v, err := input.ParseTime(q.Values[0])
	if err != nil {
		return None, fmt.Errorf("%w: %s: %v", ErrBadQualifier, q.Name, err)
	}
	return v, nil
}
