package input

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
)

// ParseTime 解析时刻字符串
// 功能：将"HH:MM"或"HH:MM:SS"解析为当天的秒数
// 参数：s-时刻字符串
// 返回：秒数，格式错误时返回error
func ParseTime(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("bad time %q", s)
	}
	total := 0.
	scale := []float64{3600, 60, 1}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("bad time %q", s)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("bad time %q", s)
		}
		total += float64(v) * scale[i]
	}
	return total, nil
}

// ValidateLayout 校验线路数据
// 功能：检查区段索引唯一、长度为正，站台/信号机/转车台引用的区段存在
// 返回：所有问题合并后的error，无问题时返回nil
func ValidateLayout(l *Layout) error {
	var errs []error
	sections := make(map[int32]Section, len(l.Sections))
	for _, s := range l.Sections {
		if _, ok := sections[s.Index]; ok {
			errs = append(errs, fmt.Errorf("duplicated section %d", s.Index))
		}
		if s.Length <= 0 {
			errs = append(errs, fmt.Errorf("section %d has non-positive length %v", s.Index, s.Length))
		}
		sections[s.Index] = s
	}
	platformIDs := make(map[int32]struct{})
	for _, p := range l.Platforms {
		if _, ok := platformIDs[p.ID]; ok {
			errs = append(errs, fmt.Errorf("duplicated platform %d", p.ID))
		}
		platformIDs[p.ID] = struct{}{}
		if len(p.Sections) == 0 {
			errs = append(errs, fmt.Errorf("platform %d has no section", p.ID))
		}
		for _, s := range p.Sections {
			if _, ok := sections[s]; !ok {
				errs = append(errs, fmt.Errorf("platform %d refers to unknown section %d", p.ID, s))
			}
		}
	}
	signalIDs := make(map[int32]struct{})
	for _, s := range l.Signals {
		if _, ok := signalIDs[s.ID]; ok {
			errs = append(errs, fmt.Errorf("duplicated signal %d", s.ID))
		}
		signalIDs[s.ID] = struct{}{}
		if _, ok := sections[s.Section]; !ok {
			errs = append(errs, fmt.Errorf("signal %d refers to unknown section %d", s.ID, s.Section))
		}
		if s.Direction != 0 && s.Direction != 1 {
			errs = append(errs, fmt.Errorf("signal %d has bad direction %d", s.ID, s.Direction))
		}
	}
	for _, t := range l.Turntables {
		if _, ok := sections[t.Section]; !ok {
			errs = append(errs, fmt.Errorf("turntable refers to unknown section %d", t.Section))
		}
	}
	return errors.Join(errs...)
}

// checkTrain 检查单趟列车数据
func checkTrain(sections map[int32]struct{}, platforms map[int32]struct{}, t Train) error {
	if len(t.Cars) == 0 {
		return fmt.Errorf("train %d(%s) has no car", t.Number, t.Name)
	}
	if len(t.Paths) == 0 || len(t.Paths[0].Route) == 0 {
		return fmt.Errorf("train %d(%s) has no path", t.Number, t.Name)
	}
	for i, p := range t.Paths {
		for _, e := range p.Route {
			if _, ok := sections[e.Section]; !ok {
				return fmt.Errorf("train %d(%s) path %d refers to unknown section %d", t.Number, t.Name, i, e.Section)
			}
		}
	}
	for _, s := range t.Stops {
		if _, ok := platforms[s.Platform]; !ok {
			return fmt.Errorf("train %d(%s) stops at unknown platform %d", t.Number, t.Name, s.Platform)
		}
	}
	if t.StartTime != "" {
		if _, err := ParseTime(t.StartTime); err != nil {
			return fmt.Errorf("train %d(%s): %w", t.Number, t.Name, err)
		}
	}
	return nil
}

// FilterTrains 过滤无效列车
// 功能：并行检查每趟列车，忽略引用了不存在区段/站台的列车，车次或车名重复则panic
// 返回：有效列车列表（保持原顺序）
func FilterTrains(l *Layout, trains []Train) []Train {
	sections := lo.SliceToMap(l.Sections, func(s Section) (int32, struct{}) {
		return s.Index, struct{}{}
	})
	platforms := lo.SliceToMap(l.Platforms, func(p Platform) (int32, struct{}) {
		return p.ID, struct{}{}
	})
	errs := parallel.GoMap(trains, func(t Train) error {
		return checkTrain(sections, platforms, t)
	})
	valid := make([]Train, 0, len(trains))
	for i, t := range trains {
		if errs[i] != nil {
			log.Warnf("ignore train: %v", errs[i])
			continue
		}
		valid = append(valid, t)
	}
	numbers := make(map[int32]struct{}, len(valid))
	names := make(map[string]struct{}, len(valid))
	for _, t := range valid {
		if _, ok := numbers[t.Number]; ok {
			log.Panicf("trains have duplicated number %d, please check data", t.Number)
		}
		numbers[t.Number] = struct{}{}
		key := strings.ToLower(t.Name)
		if _, ok := names[key]; ok {
			log.Panicf("trains have duplicated name %s, please check data", t.Name)
		}
		names[key] = struct{}{}
	}
	return valid
}
