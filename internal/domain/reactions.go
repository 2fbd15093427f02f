package domain

// AggregateReactions folds raw reactions into one summary per distinct value,
// ordered by first appearance. A member reacting twice with the same value
// is counted once.
func AggregateReactions(reactions []*Reaction) []ReactionSummary {
	out := []ReactionSummary{}
	index := map[string]int{}
	for _, r := range reactions {
		i, ok := index[r.Value]
		if !ok {
			i = len(out)
			index[r.Value] = i
			out = append(out, ReactionSummary{Value: r.Value, MemberIDs: []string{}})
		}
		if containsString(out[i].MemberIDs, r.MemberID) {
			continue
		}
		out[i].MemberIDs = append(out[i].MemberIDs, r.MemberID)
		out[i].Count++
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
