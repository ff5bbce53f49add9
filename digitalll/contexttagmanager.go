package digitalll

import "sort"

// ContextTagManager keeps one ordered log of context tags per whitelisted
// key and answers "what was the context at (or spanning) this offset"
// queries, pruning tags that can no longer be reached as it goes. It is
// the Go counterpart of digital_ll_context_tag_manager.
type ContextTagManager struct {
	whitelist map[string]bool
	logs      map[string][]StreamTag
}

// NewContextTagManager builds a manager that only retains tags whose key
// appears in keys; tags for any other key are silently ignored by Add.
func NewContextTagManager(keys []string) *ContextTagManager {
	m := &ContextTagManager{
		whitelist: make(map[string]bool, len(keys)),
		logs:      make(map[string][]StreamTag, len(keys)),
	}
	for _, k := range keys {
		m.whitelist[k] = true
		m.logs[k] = nil
	}
	return m
}

// IsContextKey reports whether key is in the manager's whitelist.
func (m *ContextTagManager) IsContextKey(key string) bool {
	return m.whitelist[key]
}

// Add appends tag to its key's log. tag.Offset must be >= the offset of
// the last tag added for the same key; an out-of-order call is a
// programmer error (spec.md §7) and is logged and ignored rather than
// corrupting the ordering invariant.
func (m *ContextTagManager) Add(tag StreamTag) {
	if !m.whitelist[tag.Key] {
		return
	}
	log := m.logs[tag.Key]
	if n := len(log); n > 0 && tag.Offset < log[n-1].Offset {
		componentLogger("ContextTagManager").Warn("out-of-order context tag add, ignoring",
			"key", tag.Key, "offset", tag.Offset, "last_offset", log[n-1].Offset)
		return
	}
	m.logs[tag.Key] = append(log, tag)
}

// findLastAtOrBefore returns the index of the last tag in log with
// offset <= offset, or -1 if none exists.
func findLastAtOrBefore(log []StreamTag, offset uint64) int {
	idx := sort.Search(len(log), func(i int) bool {
		return log[i].Offset > offset
	})
	return idx - 1
}

// LatestAt returns, for each whitelisted key, the last tag with
// Offset <= offset, if any. As a side effect, tags strictly older than
// the returned one for a key are discarded, bounding memory use.
func (m *ContextTagManager) LatestAt(offset uint64) []StreamTag {
	var out []StreamTag
	for key, log := range m.logs {
		if len(log) == 0 {
			continue
		}
		idx := findLastAtOrBefore(log, offset)
		if idx < 0 {
			continue
		}
		out = append(out, log[idx])
		if idx > 0 {
			m.logs[key] = log[idx:]
		}
	}
	SortTagsByOffset(out)
	return out
}

// LatestInRange returns, for each whitelisted key: the latest tag with
// Offset <= start (its offset rewritten to start on the returned copy),
// plus every tag with start < Offset <= end, in ascending order. Tags
// older than the one coincident with start are pruned.
func (m *ContextTagManager) LatestInRange(start, end uint64) []StreamTag {
	var out []StreamTag
	for key, log := range m.logs {
		if len(log) == 0 {
			continue
		}
		idx := findLastAtOrBefore(log, start)
		if idx >= 0 {
			coincident := log[idx]
			coincident.Offset = start
			out = append(out, coincident)
			if idx > 0 {
				log = log[idx:]
				m.logs[key] = log
			}
		}
		// tags in (start, end]: log[0] is now the "at or before start"
		// tag (if any) so skip it, then take everything up to end.
		lo := 0
		if idx >= 0 {
			lo = 1
		}
		hi := sort.Search(len(log), func(i int) bool {
			return log[i].Offset > end
		})
		for i := lo; i < hi; i++ {
			out = append(out, log[i])
		}
	}
	SortTagsByOffset(out)
	return out
}
