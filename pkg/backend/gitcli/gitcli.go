// Package gitcli implements backend.Backend by running the git executable.
//
// History is streamed from git log, trees are listed with git ls-tree and
// blob content is read through one long-lived git cat-file --batch process.
package gitcli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
)

// Kind is the name the backend is registered under.
const Kind = "git"

// Errors reported while parsing git output.
var (
	ErrMalformedOutput = errors.New("malformed git output")
	ErrMissingObject   = errors.New("object missing")
)

// logFormat prints commit hash, tree hash and strict ISO author date.
const logFormat = "--pretty=format:%H %T %aI"

// Field counts of a log line, an ls-tree entry and a cat-file header.
const (
	logFields    = 3
	treeFields   = 3
	headerFields = 3
)

func init() {
	backend.Register(Kind, func(path string, opts backend.Options) (backend.Backend, error) {
		return Open(path, opts)
	})
}

// Backend runs git in the repository directory.
type Backend struct {
	path string
	opts backend.Options
	bin  string

	mu    sync.Mutex
	batch *catFile
}

// Open checks that git is available and path is a repository.
func Open(path string, opts backend.Options) (*Backend, error) {
	bin, err := exec.LookPath("git")
	if err != nil {
		return nil, backend.Unavailable("find git", err)
	}

	b := &Backend{path: path, opts: opts, bin: bin}

	_, err = b.output(context.Background(), "rev-parse", "--git-dir")
	if err != nil {
		return nil, backend.Unavailable("open "+path, err)
	}

	return b, nil
}

// Commits implements backend.Backend. git log runs with --date-order so a
// commit is never listed before its children.
func (b *Backend) Commits(ctx context.Context) (backend.CommitIter, error) {
	rev := b.opts.RevisionOrHead()

	out, err := b.output(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return nil, backend.Unavailable("resolve "+rev, err)
	}

	cmd := b.command(ctx, logArgs(strings.TrimSpace(string(out)), b.opts.FirstParent)...)

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, backend.Unavailable("list commits", err)
	}

	err = cmd.Start()
	if err != nil {
		return nil, backend.Unavailable("list commits", err)
	}

	return &logStream{cmd: cmd, scanner: bufio.NewScanner(stdout), stderr: stderr}, nil
}

// logArgs builds the git log invocation for the history of commit. User
// configuration that changes the output shape, such as log.showSignature,
// is overridden.
func logArgs(commit string, firstParent bool) []string {
	args := []string{"log", "--date-order", "--no-show-signature", "--no-color", logFormat}
	if firstParent {
		args = append(args, "--first-parent")
	}

	return append(args, commit, "--")
}

// Blobs implements backend.Backend.
func (b *Backend) Blobs(ctx context.Context, commit backend.Commit) (backend.BlobIter, error) {
	out, err := b.output(ctx, "ls-tree", "-r", "-z", "--full-tree", commit.TreeID)
	if err != nil {
		return nil, backend.Unavailable("list tree "+commit.TreeID, err)
	}

	blobs, err := parseTree(out)
	if err != nil {
		return nil, backend.Unavailable("list tree "+commit.TreeID, err)
	}

	return backend.BlobSlice(blobs), nil
}

// CountLines implements backend.Backend.
func (b *Backend) CountLines(ctx context.Context, blob backend.Blob) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.batch == nil {
		batch, err := startCatFile(b.command(context.Background(), "cat-file", "--batch"))
		if err != nil {
			return 0, backend.Unavailable("start cat-file", err)
		}

		b.batch = batch
	}

	n, err := b.batch.countLines(blob.ID)
	if err != nil {
		if !errors.Is(err, ErrMissingObject) {
			// The stream position is unknown after a read error.
			b.batch.close()
			b.batch = nil
		}

		return 0, backend.Unavailable("read blob "+blob.ID, err)
	}

	return n, nil
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.batch == nil {
		return nil
	}

	err := b.batch.close()
	b.batch = nil

	return err
}

func (b *Backend) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, b.bin, args...)
	cmd.Dir = b.path

	return cmd
}

func (b *Backend) output(ctx context.Context, args ...string) ([]byte, error) {
	cmd := b.command(ctx, args...)

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, gitError(args[0], err, stderr)
	}

	return out, nil
}

func gitError(sub string, err error, stderr *bytes.Buffer) error {
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return fmt.Errorf("git %s: %w", sub, err)
	}

	return fmt.Errorf("git %s: %w: %s", sub, err, msg)
}

// parseTree parses git ls-tree -z output. Entries look like
// "<mode> SP <type> SP <id> TAB <path>" and are NUL terminated. Only blob
// entries are kept; submodules show up as commit entries.
func parseTree(out []byte) ([]backend.Blob, error) {
	var blobs []backend.Blob

	for entry := range bytes.SplitSeq(out, []byte{0}) {
		if len(entry) == 0 {
			continue
		}

		meta, path, ok := bytes.Cut(entry, []byte{'\t'})
		if !ok {
			return nil, fmt.Errorf("%w: ls-tree entry %q", ErrMalformedOutput, entry)
		}

		fields := strings.Fields(string(meta))
		if len(fields) != treeFields {
			return nil, fmt.Errorf("%w: ls-tree entry %q", ErrMalformedOutput, entry)
		}

		if fields[1] != "blob" {
			continue
		}

		blobs = append(blobs, backend.Blob{ID: fields[2], Name: string(path)})
	}

	return blobs, nil
}

// parseLogLine parses one "<hash> <tree> <iso date>" line.
func parseLogLine(line string) (backend.Commit, error) {
	fields := strings.Fields(line)
	if len(fields) != logFields {
		return backend.Commit{}, fmt.Errorf("%w: log line %q", ErrMalformedOutput, line)
	}

	when, err := time.Parse(time.RFC3339, fields[2])
	if err != nil {
		return backend.Commit{}, fmt.Errorf("%w: log date %q: %w", ErrMalformedOutput, fields[2], err)
	}

	return backend.Commit{ID: fields[0], TreeID: fields[1], When: when}, nil
}

// logStream reads commits from a running git log.
type logStream struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner
	stderr  *bytes.Buffer
	done    bool
}

func (s *logStream) Next() (backend.Commit, error) {
	if s.done {
		return backend.Commit{}, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			continue
		}

		commit, err := parseLogLine(line)
		if err != nil {
			s.Close()

			return backend.Commit{}, backend.Unavailable("walk history", err)
		}

		return commit, nil
	}

	s.done = true

	scanErr := s.scanner.Err()
	waitErr := s.cmd.Wait()

	if err := errors.Join(scanErr, waitErr); err != nil {
		return backend.Commit{}, backend.Unavailable("walk history", gitError("log", err, s.stderr))
	}

	return backend.Commit{}, io.EOF
}

func (s *logStream) Close() {
	if s.done {
		return
	}

	s.done = true

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}

	_ = s.cmd.Wait()
}

// catFile drives git cat-file --batch. Requests are "<id>\n"; responses are
// "<id> <type> <size>\n<content>\n" or "<id> missing\n".
type catFile struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func startCatFile(cmd *exec.Cmd) (*catFile, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("cat-file stdin: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("cat-file stdout: %w", err)
	}

	err = cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("start cat-file: %w", err)
	}

	return &catFile{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

func (c *catFile) countLines(id string) (int64, error) {
	if strings.ContainsAny(id, " \t\n") {
		return 0, fmt.Errorf("%w: %q", ErrMissingObject, id)
	}

	_, err := io.WriteString(c.stdin, id+"\n")
	if err != nil {
		return 0, fmt.Errorf("write cat-file request: %w", err)
	}

	header, err := c.stdout.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("read cat-file header: %w", err)
	}

	fields := strings.Fields(header)

	switch {
	case len(fields) == 2 && fields[1] == "missing":
		return 0, fmt.Errorf("%w: %s", ErrMissingObject, id)
	case len(fields) == 2 && fields[1] == "ambiguous":
		return 0, fmt.Errorf("%w: %s is ambiguous", ErrMissingObject, id)
	case len(fields) != headerFields:
		return 0, fmt.Errorf("%w: cat-file header %q", ErrMalformedOutput, header)
	}

	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: cat-file size %q", ErrMalformedOutput, fields[2])
	}

	n, err := backend.CountLinesReader(io.LimitReader(c.stdout, size))
	if err != nil {
		return 0, err
	}

	// Content is followed by a single LF.
	_, err = c.stdout.Discard(1)
	if err != nil {
		return 0, fmt.Errorf("read cat-file trailer: %w", err)
	}

	if fields[1] != "blob" {
		return 0, fmt.Errorf("%w: %s is a %s", ErrMissingObject, id, fields[1])
	}

	return n, nil
}

func (c *catFile) close() error {
	closeErr := c.stdin.Close()
	waitErr := c.cmd.Wait()

	return errors.Join(closeErr, waitErr)
}
