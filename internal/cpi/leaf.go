package cpi

// LeafCategories returns the categories that no other category names as its
// parent. A category with children is excluded whatever its own weight,
// since that weight is carried by its descendants.
func LeafCategories(categories []Category) []Category {
	parents := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		if !c.IsRoot() {
			parents[c.Parent] = struct{}{}
		}
	}

	leaves := make([]Category, 0, len(categories))
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		if _, hasChildren := parents[c.ID]; hasChildren {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		leaves = append(leaves, c)
	}
	return leaves
}
