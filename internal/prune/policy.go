package prune

import (
	"cmp"
	"slices"

	"github.com/flemzord/ctxprune/pkg/message"
)

// recentAssistant returns the indices of the n most recent assistant
// messages, by Index.
func recentAssistant(all []message.PrunableMessage, n int) map[int]struct{} {
	if n <= 0 {
		return nil
	}
	var idx []int
	for _, m := range all {
		if m.Role == message.RoleAssistant {
			idx = append(idx, m.Index)
		}
	}
	slices.SortFunc(idx, func(a, b int) int { return cmp.Compare(b, a) })
	out := make(map[int]struct{}, min(n, len(idx)))
	for _, i := range idx[:min(n, len(idx))] {
		out[i] = struct{}{}
	}
	return out
}

// exempt applies the role exemptions shared by soft trimming and age-based
// clearing.
func exempt(m message.PrunableMessage, protected map[int]struct{}, keepSystem, keepUser bool) bool {
	switch m.Role {
	case message.RoleSystem:
		return keepSystem
	case message.RoleUser:
		return keepUser
	case message.RoleAssistant:
		_, ok := protected[m.Index]
		return ok
	}
	return false
}
