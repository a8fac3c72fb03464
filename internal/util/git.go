package util

import (
	"fmt"
	"os/exec"
	"strings"
)

// GitInfo contains git information about a corpus directory
type GitInfo struct {
	HeadCommitSHA string
	HeadCommitMsg string
	Dirty         bool // the directory has changes compared to HEAD
	IsGitRepo     bool
}

// GetGitInfo retrieves git information for a path inside a repository. A path outside
// any repository is not an error; IsGitRepo is false.
func GetGitInfo(path string) (*GitInfo, error) {
	info := &GitInfo{}

	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = path
	if err := cmd.Run(); err != nil {
		return info, nil
	}
	info.IsGitRepo = true

	cmd = exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = path
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD commit SHA: %w", err)
	}
	info.HeadCommitSHA = strings.TrimSpace(string(output))

	cmd = exec.Command("git", "log", "-1", "--pretty=%s")
	cmd.Dir = path
	output, err = cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD commit message: %w", err)
	}
	info.HeadCommitMsg = strings.TrimSpace(string(output))

	// only changes under path count
	cmd = exec.Command("git", "status", "--porcelain", "--", ".")
	cmd.Dir = path
	output, err = cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get working tree status: %w", err)
	}
	info.Dirty = strings.TrimSpace(string(output)) != ""

	return info, nil
}

// Revision returns the HEAD SHA, suffixed with -dirty when the directory has local changes,
// or "" outside a repository
func (g *GitInfo) Revision() string {
	if g == nil || !g.IsGitRepo {
		return ""
	}
	if g.Dirty {
		return g.HeadCommitSHA + "-dirty"
	}
	return g.HeadCommitSHA
}
