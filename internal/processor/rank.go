package processor

import "sort"

// State 区分“尚未运行”和“确认没有结果”
type State int

const (
	// StatePending 零值，表示流程没有跑过
	StatePending State = iota
	// StateEmpty 流程已完成但结果为空
	StateEmpty
	// StateReady 流程已完成且至少有一条结果
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	default:
		return "pending"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "empty":
		*s = StateEmpty
	case "ready":
		*s = StateReady
	default:
		*s = StatePending
	}
	return nil
}

// AggregationResult 按时间倒序排列、key 唯一、长度不超过 maxItems 的结果
type AggregationResult struct {
	State State           `json:"state"`
	Items []CanonicalItem `json:"items"`
}

// Ran 返回流程是否已经执行（包括结果为空的情况）
func (r AggregationResult) Ran() bool {
	return r.State != StatePending
}

// Empty 仅在流程执行过且没有任何条目时为 true
func (r AggregationResult) Empty() bool {
	return r.State == StateEmpty
}

// Rank 按时间戳倒序稳定排序后截断到 maxItems。
// maxItems <= 0 或输入为空时返回 StateEmpty。输入切片不会被修改。
func Rank(items []CanonicalItem, maxItems int) AggregationResult {
	if maxItems <= 0 || len(items) == 0 {
		return AggregationResult{State: StateEmpty, Items: []CanonicalItem{}}
	}

	sorted := make([]CanonicalItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	if len(sorted) > maxItems {
		sorted = sorted[:maxItems]
	}
	return AggregationResult{State: StateReady, Items: sorted}
}
