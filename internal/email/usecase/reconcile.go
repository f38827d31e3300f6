package usecase

// SyncPlan partitions message ids by the write each one needs.
type SyncPlan struct {
	New     []string `json:"new"`
	Changed []string `json:"changed"`
	Deleted []string `json:"deleted"`
}

// Reconcile splits remote and local ids into new (remote only), changed
// (both) and deleted (local only). Every id lands in exactly one bucket;
// duplicates are collapsed and input order is kept.
func Reconcile(remoteIDs, localIDs []string) SyncPlan {
	local := make(map[string]struct{}, len(localIDs))
	for _, id := range localIDs {
		local[id] = struct{}{}
	}

	plan := SyncPlan{New: []string{}, Changed: []string{}, Deleted: []string{}}
	remote := make(map[string]struct{}, len(remoteIDs))
	for _, id := range remoteIDs {
		if _, seen := remote[id]; seen {
			continue
		}
		remote[id] = struct{}{}
		if _, ok := local[id]; ok {
			plan.Changed = append(plan.Changed, id)
		} else {
			plan.New = append(plan.New, id)
		}
	}

	deleted := make(map[string]struct{})
	for _, id := range localIDs {
		if _, ok := remote[id]; ok {
			continue
		}
		if _, seen := deleted[id]; seen {
			continue
		}
		deleted[id] = struct{}{}
		plan.Deleted = append(plan.Deleted, id)
	}
	return plan
}
