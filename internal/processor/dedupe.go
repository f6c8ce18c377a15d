package processor

// Dedupe 单次从左到右扫描，维护已见 key 集合；重复 key 无论来自哪个源都丢弃，
// 保留首次出现的条目及相对顺序。必须作用于所有源拼接后的序列。
func Dedupe(items []CanonicalItem) []CanonicalItem {
	out := make([]CanonicalItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, it := range items {
		if _, ok := seen[it.Key]; ok {
			continue
		}
		seen[it.Key] = struct{}{}
		out = append(out, it)
	}
	return out
}
