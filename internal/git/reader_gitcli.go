package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	fieldSep  = 0x1f
	recordSep = 0x00
)

// logFormat emits one record per commit: hash, parents, author, committer date, subject
// and body separated by 0x1f, terminated by NUL.
const logFormat = "%H%x1f%P%x1f%an%x1f%cI%x1f%s%x1f%b%x00"

// tagFormat prints the tag name followed by the dereferenced commit for annotated tags
// or the direct object for lightweight ones.
const tagFormat = "%(refname:short) %(if)%(*objectname)%(then)%(*objectname)%(else)%(objectname)%(end)"

// CLISource reads history by shelling out to the git executable.
type CLISource struct {
	opts SourceOptions
}

// NewCLISource creates a source rooted at opts.RepoDir.
func NewCLISource(opts SourceOptions) *CLISource {
	return &CLISource{opts: opts}
}

// Fetch initialises a bare mirror if needed and fetches branches and tags from the
// origin. Configured branches missing upstream are skipped and their stale local
// copies removed.
func (s *CLISource) Fetch(ctx context.Context) error {
	if s.opts.Origin == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Join(s.opts.RepoDir, "HEAD")); os.IsNotExist(err) {
		if err := os.MkdirAll(s.opts.RepoDir, 0o755); err != nil {
			return fmt.Errorf("create repo dir: %w", err)
		}
		if _, err := s.run(ctx, "init", "--bare", "."); err != nil {
			return NewUpstreamFetchError("git init", err)
		}
	}

	out, err := s.run(ctx, "ls-remote", "--heads", s.opts.Origin)
	if err != nil {
		return NewUpstreamFetchError("ls-remote "+s.opts.Origin, err)
	}
	branches := selectBranches(s.opts.Branches, parseHeadLines(out))

	args := []string{"fetch", s.opts.Origin, "--prune", "--refmap="}
	for _, b := range branches {
		args = append(args, branchRefSpec(b))
	}
	args = append(args, "+refs/tags/*:refs/tags/*")
	if _, err := s.run(ctx, args...); err != nil {
		return NewUpstreamFetchError("fetch "+s.opts.Origin, err)
	}
	return s.pruneBranches(ctx, branches)
}

// pruneBranches deletes local branches matching the configured patterns that were
// not fetched.
func (s *CLISource) pruneBranches(ctx context.Context, fetched []string) error {
	keep := make(map[string]struct{}, len(fetched))
	for _, b := range fetched {
		keep[b] = struct{}{}
	}
	local, err := s.ListBranches(ctx, "")
	if err != nil {
		return err
	}
	for _, name := range local {
		if _, ok := keep[name]; ok || !matchesAny(s.opts.Branches, name) {
			continue
		}
		if _, err := s.run(ctx, "update-ref", "-d", "refs/heads/"+name); err != nil {
			return fmt.Errorf("prune %s: %w", name, err)
		}
	}
	return nil
}

// ListBranches returns local branch names matching pattern, sorted by name.
func (s *CLISource) ListBranches(ctx context.Context, pattern string) ([]string, error) {
	out, err := s.run(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads/")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range splitLines(out) {
		if matchesPattern(pattern, line) {
			names = append(names, line)
		}
	}
	sort.Strings(names)
	return names, nil
}

// BranchExists reports whether refs/heads/<name> exists.
func (s *CLISource) BranchExists(ctx context.Context, name string) (bool, error) {
	_, err := s.run(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

// Log returns the commits in baseTag..branch.
func (s *CLISource) Log(ctx context.Context, baseTag, branch string) ([]*Commit, error) {
	out, err := s.run(ctx, "log", "--no-color", "--format="+logFormat, baseTag+".."+"refs/heads/"+branch)
	if err != nil {
		return nil, err
	}
	return parseLogRecords(out)
}

// Tags returns tag name -> commit hash for tags matching pattern.
func (s *CLISource) Tags(ctx context.Context, pattern string) (map[string]string, error) {
	out, err := s.run(ctx, "for-each-ref", "--format="+tagFormat, "refs/tags/")
	if err != nil {
		return nil, err
	}
	return parseTagLines(out, pattern)
}

// ResolveBranch returns the commit at the tip of the named branch.
func (s *CLISource) ResolveBranch(ctx context.Context, name string) (string, error) {
	out, err := s.run(ctx, "rev-parse", "--verify", "refs/heads/"+name+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("resolve branch %s: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Describe runs `git describe --tags --long` for hash.
func (s *CLISource) Describe(ctx context.Context, hash string) (string, error) {
	args := []string{"describe", "--tags", "--long"}
	if s.opts.TagPattern != "" {
		args = append(args, "--match", s.opts.TagPattern)
	}
	args = append(args, hash)
	out, err := s.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ReadFile returns the contents of path at rev.
func (s *CLISource) ReadFile(ctx context.Context, rev, path string) ([]byte, error) {
	out, err := s.run(ctx, "show", rev+":"+path)
	if err != nil && isMissingObject(err) {
		return nil, fmt.Errorf("read %s:%s: %w", rev, path, ErrFileNotFound)
	}
	return out, err
}

// isMissingObject recognises the messages git show prints for an unknown revision
// or a path absent from it.
func isMissingObject(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"does not exist in", "exists on disk, but not in", "invalid object name"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (s *CLISource) run(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"-C", s.opts.RepoDir}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// parseHeadLines extracts branch names from `git ls-remote --heads` output.
func parseHeadLines(out []byte) []string {
	var names []string
	for _, line := range splitLines(out) {
		_, ref, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		if name, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
			names = append(names, name)
		}
	}
	return names
}

func parseLogRecords(out []byte) ([]*Commit, error) {
	records := bytes.Split(out, []byte{recordSep})
	results := make([]*Commit, 0, len(records))

	for _, rec := range records {
		rec = bytes.TrimLeft(rec, "\r\n")
		if len(bytes.TrimSpace(rec)) == 0 {
			continue
		}

		fields := bytes.SplitN(rec, []byte{fieldSep}, 6)
		if len(fields) < 6 {
			return nil, fmt.Errorf("unexpected git log record format: %d fields", len(fields))
		}

		date, err := time.Parse(time.RFC3339, strings.TrimSpace(string(fields[3])))
		if err != nil {
			return nil, fmt.Errorf("parse committer date: %w", err)
		}

		results = append(results, &Commit{
			Hash:    strings.TrimSpace(string(fields[0])),
			Parents: strings.Fields(string(fields[1])),
			Author:  strings.TrimSpace(string(fields[2])),
			Date:    date,
			Subject: strings.TrimSpace(string(fields[4])),
			Body:    strings.TrimSpace(string(fields[5])),
		})
	}

	return results, nil
}

func parseTagLines(out []byte, pattern string) (map[string]string, error) {
	tags := make(map[string]string)
	for _, line := range splitLines(out) {
		name, hash, ok := strings.Cut(line, " ")
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("unexpected for-each-ref line: %q", line)
		}
		if matchesPattern(pattern, name) {
			tags[name] = strings.TrimSpace(hash)
		}
	}
	return tags, nil
}

func splitLines(out []byte) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
