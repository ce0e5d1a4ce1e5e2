package rewrite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/antgroup/branchless/pkg/hooks"
)

const metadataFileName = "rebase.toml"

// Metadata is the resumable on-disk record of an in-progress on-disk
// rebase: enough of the plan's shape to recognize which rewrite a
// post-rewrite hook firing mid-rebase belongs to. Persists the same kind
// of bookkeeping (onto, labels, force flag) a rebase sequencer tracks,
// via the github.com/BurntSushi/toml encoder/decoder pair.
type Metadata struct {
	Onto                      string            `toml:"onto"`
	ForceRewritePublicCommits bool              `toml:"force_rewrite_public_commits"`
	Labels                    map[string]string `toml:"labels"`
}

func metadataPath(gitDir string) string {
	return filepath.Join(hooks.StateDir(gitDir), metadataFileName)
}

// SaveMetadata persists md for the rebase in progress under gitDir.
func SaveMetadata(gitDir string, md Metadata) error {
	if err := os.MkdirAll(hooks.StateDir(gitDir), 0700); err != nil {
		return fmt.Errorf("rewrite: create state dir: %w", err)
	}
	f, err := os.Create(metadataPath(gitDir))
	if err != nil {
		return fmt.Errorf("rewrite: create %s: %w", metadataFileName, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(md); err != nil {
		return fmt.Errorf("rewrite: encode %s: %w", metadataFileName, err)
	}
	return nil
}

// LoadMetadata reads back what SaveMetadata wrote, if a rebase is in
// progress.
func LoadMetadata(gitDir string) (Metadata, bool, error) {
	var md Metadata
	if _, err := os.Stat(metadataPath(gitDir)); os.IsNotExist(err) {
		return Metadata{}, false, nil
	}
	if _, err := toml.DecodeFile(metadataPath(gitDir), &md); err != nil {
		return Metadata{}, false, fmt.Errorf("rewrite: decode %s: %w", metadataFileName, err)
	}
	return md, true, nil
}

// ClearMetadata removes the on-disk record once a rebase concludes or is
// aborted.
func ClearMetadata(gitDir string) error {
	if err := os.Remove(metadataPath(gitDir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rewrite: remove %s: %w", metadataFileName, err)
	}
	return nil
}
