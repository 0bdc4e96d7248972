package utils

// Find 按ID(int32)查找数据
// 功能：ids为空时返回全部数据，否则按ids顺序返回找到的数据
// 返回：找到的数据与不存在的ID列表
func Find[T any](dataMap map[int32]T, data []T, ids []int32) (okData []T, failedIDs []int32) {
	if len(ids) == 0 {
		return data, nil
	}
	okData = make([]T, 0, len(ids))
	for _, id := range ids {
		if d, ok := dataMap[id]; ok {
			okData = append(okData, d)
		} else {
			failedIDs = append(failedIDs, id)
		}
	}
	return
}
