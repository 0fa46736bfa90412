package worktree

import "strings"

// Info describes one worktree as reported by git.
type Info struct {
	Path       string `json:"path"`
	Head       string `json:"head,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Bare       bool   `json:"bare,omitempty"`
	Detached   bool   `json:"detached,omitempty"`
	Locked     bool   `json:"locked,omitempty"`
	LockReason string `json:"lock_reason,omitempty"`
	Prunable   bool   `json:"prunable,omitempty"`
}

// parsePorcelain parses `git worktree list --porcelain` output. Entries are
// separated by blank lines; each attribute is one line, label first.
func parsePorcelain(output string) []Info {
	// Initialize to empty slice (not nil) so JSON marshals to [] not null
	infos := make([]Info, 0)

	var cur *Info
	flush := func() {
		if cur != nil && cur.Path != "" {
			infos = append(infos, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}
		if cur == nil {
			cur = &Info{}
		}

		switch {
		case strings.HasPrefix(line, "worktree "):
			cur.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = shortBranch(strings.TrimPrefix(line, "branch "))
		case line == "bare":
			cur.Bare = true
		case line == "detached":
			cur.Detached = true
		case line == "locked":
			cur.Locked = true
		case strings.HasPrefix(line, "locked "):
			cur.Locked = true
			cur.LockReason = strings.TrimPrefix(line, "locked ")
		case line == "prunable" || strings.HasPrefix(line, "prunable "):
			cur.Prunable = true
		}
	}
	flush()

	return infos
}

// shortBranch strips the refs/heads/ prefix from a full ref name.
func shortBranch(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}
