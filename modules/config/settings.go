package config

// Settings is the overlay core's own view of the host VCS config: the
// handful of `[branchless ...]` keys every component consults (which
// branch is "main", whether advisory hints are suppressed). It wraps a
// parsed Config rather than re-parsing anything itself.
type Settings struct {
	cfg *Config
}

// NewSettings wraps an already-parsed Config.
func NewSettings(cfg *Config) *Settings {
	return &Settings{cfg: cfg}
}

// MainBranchName returns the configured main branch's short name, defaulting
// to "master" when unset, matching the host VCS's own default.
func (s *Settings) MainBranchName() string {
	return s.cfg.GetString("branchless.core.mainbranch", "master")
}

// HintDisabled reports whether a named advisory hint (e.g.
// "smartlog-fix-abandoned") has been suppressed via
// `branchless.hint.<name> = false`.
func (s *Settings) HintDisabled(name string) bool {
	return !s.cfg.GetBool("branchless.hint."+name, true)
}

// RestackPreserveTimestamps reports whether rebases should carry forward the
// original commit/author timestamps instead of stamping the rewrite time.
func (s *Settings) RestackPreserveTimestamps() bool {
	return s.cfg.GetBool("branchless.restack.preservetimestamps", true)
}

// WorkerCount returns the configured plan-executor worker pool size,
// defaulting to def when unset or non-positive.
func (s *Settings) WorkerCount(def int) int {
	n := s.cfg.GetInt("branchless.rewrite.workers", def)
	if n <= 0 {
		return def
	}
	return n
}
