package publish

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/google/go-github/v66/github"
	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/sink"
)

// ErrIncomplete is returned when required repository coordinates are missing.
var ErrIncomplete = errors.New("publish: owner, repo and path are required")

// GitHubOptions locates the published file.
type GitHubOptions struct {
	Owner  string
	Repo   string
	Path   string
	Branch string
	// CommitSHA is the triggering commit; its message is reused.
	CommitSHA      string
	DefaultMessage string
}

// GitHub commits artifacts through the repository contents API.
type GitHub struct {
	client *github.Client
	opts   GitHubOptions
}

// NewGitHub returns a publisher authenticated with token. A nil httpClient
// uses http.DefaultClient.
func NewGitHub(httpClient *http.Client, token string, opts GitHubOptions) (*GitHub, error) {
	if opts.Owner == "" || opts.Repo == "" || opts.Path == "" {
		return nil, ErrIncomplete
	}
	if opts.DefaultMessage == "" {
		opts.DefaultMessage = DefaultMessage
	}
	c := github.NewClient(httpClient)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	return &GitHub{client: c, opts: opts}, nil
}

// Client exposes the underlying API client, e.g. to point BaseURL elsewhere.
func (g *GitHub) Client() *github.Client { return g.client }

// Publish uploads a.Path. The prior file sha and the triggering commit
// message are fetched concurrently; an identical blob is not committed again.
func (g *GitHub) Publish(ctx context.Context, a Artifact) error {
	content, err := os.ReadFile(a.Path)
	if err != nil {
		return &sink.IOError{Op: "read", Path: a.Path, Err: err}
	}

	var prevSHA, commitMsg string
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		sha, err := g.existingSHA(egCtx)
		prevSHA = sha
		return err
	})
	eg.Go(func() error {
		msg, err := g.commitMessage(egCtx)
		commitMsg = msg
		return err
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	if prevSHA != "" && prevSHA == BlobSHA(content) {
		log.Printf("✔︎ %s/%s:%s unchanged, nothing to commit", g.opts.Owner, g.opts.Repo, g.opts.Path)
		return nil
	}

	msg := a.Message
	if msg == "" {
		msg = commitMsg
	}
	if msg == "" {
		msg = g.opts.DefaultMessage
	}
	fo := &github.RepositoryContentFileOptions{
		Message: github.String(msg),
		Content: content,
	}
	if g.opts.Branch != "" {
		fo.Branch = github.String(g.opts.Branch)
	}

	if prevSHA == "" {
		_, _, err = g.client.Repositories.CreateFile(ctx, g.opts.Owner, g.opts.Repo, g.opts.Path, fo)
	} else {
		fo.SHA = github.String(prevSHA)
		_, _, err = g.client.Repositories.UpdateFile(ctx, g.opts.Owner, g.opts.Repo, g.opts.Path, fo)
	}
	if err != nil {
		return fmt.Errorf("failed to commit %s to %s/%s: %w", g.opts.Path, g.opts.Owner, g.opts.Repo, err)
	}
	log.Printf("✔︎ Committed %q to %s/%s (%q)", g.opts.Path, g.opts.Owner, g.opts.Repo, msg)
	return nil
}

// existingSHA returns "" when the file does not exist yet.
func (g *GitHub) existingSHA(ctx context.Context) (string, error) {
	var opt *github.RepositoryContentGetOptions
	if g.opts.Branch != "" {
		opt = &github.RepositoryContentGetOptions{Ref: g.opts.Branch}
	}
	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.opts.Owner, g.opts.Repo, g.opts.Path, opt)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to fetch %s: %w", g.opts.Path, err)
	}
	if file == nil {
		return "", fmt.Errorf("publish: %s is a directory", g.opts.Path)
	}
	return file.GetSHA(), nil
}

// commitMessage returns "" when no commit SHA is configured.
func (g *GitHub) commitMessage(ctx context.Context) (string, error) {
	if g.opts.CommitSHA == "" {
		return "", nil
	}
	c, _, err := g.client.Repositories.GetCommit(ctx, g.opts.Owner, g.opts.Repo, g.opts.CommitSHA, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch commit %s: %w", g.opts.CommitSHA, err)
	}
	return c.GetCommit().GetMessage(), nil
}
