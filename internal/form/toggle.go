package form

// ToggleOption flips option in selected and returns the new selection.
// The sentinel (e.g. "None") is mutually exclusive with every other option:
// selecting it clears the rest, and selecting anything else drops it.
// An empty sentinel disables the exclusivity rule.
func ToggleOption(selected []string, option, sentinel string) []string {
	if contains(selected, option) {
		out := make([]string, 0, len(selected))
		for _, s := range selected {
			if s != option {
				out = append(out, s)
			}
		}
		return out
	}

	if sentinel != "" && option == sentinel {
		return []string{sentinel}
	}

	out := make([]string, 0, len(selected)+1)
	for _, s := range selected {
		if sentinel != "" && s == sentinel {
			continue
		}
		out = append(out, s)
	}
	return append(out, option)
}
