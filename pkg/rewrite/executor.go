package rewrite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/antgroup/branchless/modules/command"
	"github.com/antgroup/branchless/modules/git"
	"github.com/antgroup/branchless/modules/oid"
	"github.com/antgroup/branchless/modules/refname"
	"github.com/antgroup/branchless/pkg/hooks"
)

// ExecuteMode selects how Execute realizes a RebasePlan.
type ExecuteMode int8

const (
	// ExecuteInMemory applies every step as a tree-level merge, touching
	// neither the working copy nor the index. Fails closed: a conflicted
	// step aborts the whole plan rather than leaving a partially-applied
	// rewrite on disk.
	ExecuteInMemory ExecuteMode = iota
	// ExecuteOnDisk delegates to the host VCS's own interactive-rebase
	// sequencer, so conflicts are resolved the ordinary way (stopping the
	// rebase for the user) instead of failing the whole operation.
	ExecuteOnDisk
)

// ExecuteOptions configures one Execute call.
type ExecuteOptions struct {
	Mode ExecuteMode

	// PreserveTimestamps keeps each rewritten commit's original author
	// and committer time; otherwise the committer time is refreshed to
	// now while the author time is always kept, matching ordinary
	// `git commit --amend` behavior.
	PreserveTimestamps bool

	CommitterName  string
	CommitterEmail string
}

// DeclinedToMergeError reports that ExecuteInMemory hit a step it could
// not resolve without the user's help: a text or path conflict the
// three-way tree merge could not settle automatically.
type DeclinedToMergeError struct {
	Commit    oid.NonZeroOid
	Conflicts []git.TreeConflict
}

func (e *DeclinedToMergeError) Error() string {
	return fmt.Sprintf("rewrite: %s could not be applied in memory: %d conflicting path(s)", e.Commit, len(e.Conflicts))
}

// ExecuteResult reports every old-to-new OID mapping the plan produced.
// A commit the plan dropped (StepDrop) maps to the zero OID; a fixup maps
// to the commit it was folded into.
type ExecuteResult struct {
	RewrittenOids map[oid.Oid]oid.Zeroable
	// HeadOid is the commit the working copy's branch should end up
	// pointing at once the caller applies RewrittenOids to its
	// references; ExecuteOnDisk leaves this to the host VCS's rebase
	// machinery instead and always returns the zero value.
	HeadOid oid.Zeroable
}

// Execute realizes plan against the repository at gitDir, either fully
// in-memory or by delegating to the host VCS.
func Execute(ctx context.Context, gitDir string, algo oid.Algo, plan *RebasePlan, opts ExecuteOptions) (*ExecuteResult, error) {
	if plan.IsEmpty() {
		return &ExecuteResult{RewrittenOids: map[oid.Oid]oid.Zeroable{}}, nil
	}
	switch opts.Mode {
	case ExecuteInMemory:
		return executeInMemory(ctx, gitDir, algo, plan, opts)
	case ExecuteOnDisk:
		return executeOnDisk(ctx, gitDir, plan, opts)
	default:
		return nil, fmt.Errorf("rewrite: unknown execute mode %d", opts.Mode)
	}
}

// executeInMemory walks plan.Steps, building each new commit via
// git.MergeTrees/git.CommitTree without ever touching the working copy
// or the index. cursor tracks the commit the next Pick/Fixup/Reword
// applies onto; labels records where Label stashed the cursor for a
// later Reset to recall (StepReset's Label also accepts a literal OID,
// for the builder's own inter-move resets, so an unrecognized label
// falls back to oid.Parse).
func executeInMemory(ctx context.Context, gitDir string, algo oid.Algo, plan *RebasePlan, opts ExecuteOptions) (*ExecuteResult, error) {
	rewritten := make(map[oid.Oid]oid.Zeroable)
	labels := make(map[string]oid.Oid)

	cursor := plan.Onto.Oid()
	var fixupBase oid.Oid // commit the in-progress fixup run is folding into, if any

	committerName, committerEmail := opts.CommitterName, opts.CommitterEmail

	for _, step := range plan.Steps {
		switch step.Kind {
		case StepDrop:
			rewritten[step.Commit.Oid()] = oid.ZeroOf(algo)

		case StepLabel:
			labels[step.Label] = cursor

		case StepReset:
			target, ok := labels[step.Label]
			if !ok {
				parsed, err := oid.Parse(step.Label)
				if err != nil {
					return nil, fmt.Errorf("rewrite: reset: unknown label %q: %w", step.Label, err)
				}
				target = parsed
			}
			cursor = target
			fixupBase = oid.Oid{}

		case StepPick, StepFixup, StepReword:
			original, err := git.ParseRev(ctx, gitDir, step.Commit.Oid().String())
			if err != nil {
				return nil, fmt.Errorf("rewrite: load %s: %w", step.Commit, err)
			}
			ontoCommit, err := git.ParseRev(ctx, gitDir, cursor.String())
			if err != nil {
				return nil, fmt.Errorf("rewrite: load %s: %w", cursor, err)
			}
			var parentTree string
			if len(original.Parents) > 0 {
				parentCommit, err := git.ParseRev(ctx, gitDir, original.Parents[0])
				if err != nil {
					return nil, fmt.Errorf("rewrite: load parent of %s: %w", step.Commit, err)
				}
				parentTree = parentCommit.Tree
			}

			mergedTree, conflicts, err := git.MergeTrees(ctx, gitDir, parentTree, ontoCommit.Tree, original.Tree)
			if err != nil {
				return nil, fmt.Errorf("rewrite: merge %s onto %s: %w", step.Commit, cursor, err)
			}
			if len(conflicts) > 0 {
				return nil, &DeclinedToMergeError{Commit: step.Commit, Conflicts: conflicts}
			}

			author := original.Author
			committer := original.Committer
			if committerName != "" {
				committer.Name = committerName
			}
			if committerEmail != "" {
				committer.Email = committerEmail
			}
			if !opts.PreserveTimestamps {
				committer.When = time.Now()
			}

			message := original.Message
			if step.Kind == StepReword && step.Message != "" {
				message = step.Message
			}

			if step.Kind == StepFixup {
				// Fold into the commit the run of fixups started from:
				// same parent as that commit, tree already carries the
				// fixup's changes via the merge above, message and
				// authorship stay the predecessor's.
				base := fixupBase
				if base.IsZero() {
					base = cursor
				}
				baseCommit, err := git.ParseRev(ctx, gitDir, base.String())
				if err != nil {
					return nil, fmt.Errorf("rewrite: load fixup base %s: %w", base, err)
				}
				newOid, err := git.CommitTree(ctx, gitDir, mergedTree, baseCommit.Parents, baseCommit.Author, committer, baseCommit.Message)
				if err != nil {
					return nil, fmt.Errorf("rewrite: commit fixup of %s: %w", step.Commit, err)
				}
				newParsed := oid.MustParse(newOid)
				rewritten[base] = oid.FromOid(newParsed)
				rewritten[step.Commit.Oid()] = oid.FromOid(newParsed)
				cursor = newParsed
				fixupBase = newParsed
				continue
			}

			parents := []string{cursor.String()}
			for _, extra := range step.ExtraParents {
				parents = append(parents, extra.String())
			}
			newOid, err := git.CommitTree(ctx, gitDir, mergedTree, parents, author, committer, message)
			if err != nil {
				return nil, fmt.Errorf("rewrite: commit %s: %w", step.Commit, err)
			}
			newParsed := oid.MustParse(newOid)
			rewritten[step.Commit.Oid()] = oid.FromOid(newParsed)
			cursor = newParsed
			fixupBase = newParsed
		}
	}

	return &ExecuteResult{RewrittenOids: rewritten, HeadOid: oid.FromOid(cursor)}, nil
}

// executeOnDisk renders plan as a Git interactive-rebase todo list and
// hands it to `git rebase --interactive`, so Git's own sequencer drives
// the working copy and a conflict stops the rebase for the user to
// resolve exactly as an ordinary interactive rebase would. The todo list
// is pre-written and substituted in via GIT_SEQUENCE_EDITOR rather than
// generated by `git rebase -i` itself, since the plan — not Git's
// default one-commit-per-line listing — is the source of truth.
func executeOnDisk(ctx context.Context, gitDir string, plan *RebasePlan, opts ExecuteOptions) (*ExecuteResult, error) {
	headHex, headRef, err := git.RevParseCurrentEx(ctx, nil, gitDir)
	if err != nil {
		return nil, fmt.Errorf("rewrite: resolve HEAD: %w", err)
	}
	var headInfo hooks.HeadInfo
	if headHex != "" {
		headOid, err := oid.ParseNonZero(headHex)
		if err != nil {
			return nil, fmt.Errorf("rewrite: parse HEAD oid: %w", err)
		}
		headInfo.Oid = oid.FromNonZero(headOid)
	}
	headInfo.ReferenceName = refname.Name(headRef)
	if err := hooks.SaveOriginalHeadInfo(gitDir, headInfo); err != nil {
		return nil, fmt.Errorf("rewrite: save original HEAD: %w", err)
	}
	if err := hooks.RegisterExtraPostRewriteHook(gitDir); err != nil {
		return nil, fmt.Errorf("rewrite: register post-rewrite hook: %w", err)
	}

	todoFile, err := os.CreateTemp("", "branchless-rebase-todo-*")
	if err != nil {
		return nil, fmt.Errorf("rewrite: create todo file: %w", err)
	}
	todoPath := todoFile.Name()
	defer os.Remove(todoPath)
	if err := writeTodoList(todoFile, plan); err != nil {
		todoFile.Close()
		return nil, err
	}
	if err := todoFile.Close(); err != nil {
		return nil, fmt.Errorf("rewrite: close todo file: %w", err)
	}

	if err := SaveMetadata(gitDir, Metadata{Onto: plan.Onto.String()}); err != nil {
		return nil, err
	}

	editorScript, err := writeSequenceEditorScript(todoPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(editorScript)

	args := []string{"rebase", "--interactive", "--autosquash", "--onto", plan.Onto.String(), plan.Onto.String()}
	stderr := command.NewStderr()
	cmd := command.NewFromOptions(ctx, &command.RunOpts{
		RepoPath: gitDir,
		Stderr:   stderr,
		ExtraEnv: []string{"GIT_SEQUENCE_EDITOR=" + editorScript, "GIT_EDITOR=true"},
	}, "git", args...)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rewrite: git rebase --interactive: %w: %s", err, stderr.String())
	}

	return &ExecuteResult{RewrittenOids: map[oid.Oid]oid.Zeroable{}}, nil
}

// writeSequenceEditorScript writes a small shell script that Git runs in
// place of an interactive editor (via GIT_SEQUENCE_EDITOR), replacing
// whatever todo list Git generated with our pre-written one rather than
// asking a human to edit it. Git invokes the script with the path to
// edit as its first argument, so the script itself needs no quoting of
// todoPath beyond what a here-doc-free `cp` already handles.
func writeSequenceEditorScript(todoPath string) (string, error) {
	abs, err := filepath.Abs(todoPath)
	if err != nil {
		return "", fmt.Errorf("rewrite: resolve todo path: %w", err)
	}
	f, err := os.CreateTemp("", "branchless-sequence-editor-*.sh")
	if err != nil {
		return "", fmt.Errorf("rewrite: create sequence editor script: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "#!/bin/sh\nexec cp -- %q \"$1\"\n", abs); err != nil {
		return "", fmt.Errorf("rewrite: write sequence editor script: %w", err)
	}
	if err := f.Chmod(0700); err != nil {
		return "", fmt.Errorf("rewrite: chmod sequence editor script: %w", err)
	}
	return f.Name(), nil
}

// writeTodoList renders plan in Git's interactive-rebase sequencer
// syntax. Reword is emitted as an `exec` that amends the message in
// place rather than a `reword` line, since `reword` would otherwise stop
// the rebase to open an interactive editor; message is passed through a
// temp file rather than the command line to avoid any shell-quoting
// surprises in commit text.
func writeTodoList(w *os.File, plan *RebasePlan) error {
	for _, step := range plan.Steps {
		var line string
		switch step.Kind {
		case StepPick:
			if len(step.ExtraParents) > 0 {
				// The sequencer's `merge` command models a two-parent
				// merge; a MoveSubtree root preserved with more than one
				// extra parent only round-trips exactly through
				// ExecuteInMemory, which passes every ExtraParents entry
				// straight to CommitTree. Here only the first is kept.
				line = fmt.Sprintf("merge -C %s %s", step.Commit, step.ExtraParents[0])
			} else {
				line = fmt.Sprintf("pick %s", step.Commit)
			}
		case StepFixup:
			line = fmt.Sprintf("fixup %s", step.Commit)
		case StepReword:
			if len(step.ExtraParents) > 0 {
				line = fmt.Sprintf("merge -C %s %s", step.Commit, step.ExtraParents[0])
			} else {
				line = fmt.Sprintf("pick %s", step.Commit)
			}
		case StepDrop:
			line = fmt.Sprintf("drop %s", step.Commit)
		case StepLabel:
			line = fmt.Sprintf("label %s", step.Label)
		case StepReset:
			line = fmt.Sprintf("reset %s", step.Label)
		default:
			continue
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("rewrite: write todo list: %w", err)
		}
		if step.Kind == StepReword && step.Message != "" {
			msgPath, err := writeRewordMessageFile(step.Message)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "exec git commit --amend -F %s\n", msgPath); err != nil {
				return fmt.Errorf("rewrite: write todo list: %w", err)
			}
		}
	}
	return nil
}

// writeRewordMessageFile stashes a reword step's replacement message in
// its own temp file, so the todo list's `exec` line only ever needs a
// bare path argument and never has to quote arbitrary commit-message
// text for the shell.
func writeRewordMessageFile(message string) (string, error) {
	f, err := os.CreateTemp("", "branchless-reword-message-*")
	if err != nil {
		return "", fmt.Errorf("rewrite: create reword message file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(message); err != nil {
		return "", fmt.Errorf("rewrite: write reword message file: %w", err)
	}
	return f.Name(), nil
}
