package processor

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/LJTian/DailyBrief/internal/collector"
)

// CanonicalItem 是进入聚合流程的统一结构
type CanonicalItem struct {
	// Key 为去首尾空白并做大小写折叠后的标题，用作去重身份，永不为空
	Key         string    `json:"key"`
	DisplayText string    `json:"title"`
	Link        string    `json:"link,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SourceID    string    `json:"source"`
}

// CanonicalKey 返回标题的规范化 key；全空白标题返回空串
func CanonicalKey(title string) string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return ""
	}
	// cases.Caser 有内部状态，不能跨 goroutine 共享，这里每次新建
	return cases.Fold().String(trimmed)
}

// Normalize 把 RawItem 转成 CanonicalItem，标题为空时 ok 为 false。
// 时间取值顺序：发布时间 → 更新时间 → now（缺时间戳的条目视为“刚看到”）。
func Normalize(raw collector.RawItem, now time.Time) (CanonicalItem, bool) {
	key := CanonicalKey(raw.Title)
	if key == "" {
		return CanonicalItem{}, false
	}

	ts := now
	switch {
	case raw.PublishedAt != nil && !raw.PublishedAt.IsZero():
		ts = *raw.PublishedAt
	case raw.UpdatedAt != nil && !raw.UpdatedAt.IsZero():
		ts = *raw.UpdatedAt
	}

	return CanonicalItem{
		Key:         key,
		DisplayText: raw.Title,
		Link:        raw.Link,
		Timestamp:   ts,
		SourceID:    raw.SourceID,
	}, true
}

// NormalizeAll 归一化一批条目并丢弃无效条目，保持原有顺序
func NormalizeAll(raws []collector.RawItem, now time.Time) []CanonicalItem {
	out := make([]CanonicalItem, 0, len(raws))
	for _, raw := range raws {
		if item, ok := Normalize(raw, now); ok {
			out = append(out, item)
		}
	}
	return out
}
