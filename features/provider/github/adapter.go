// Package github implements provider.Adapter/Opener for the code-host
// capabilities (CapCodeRead, CapCodeSearch, CapCodeListCommits,
// CapCodeListRepos) over the GitHub REST API via google/go-github/v66. This
// dependency has no usage anywhere in the reference corpus — SPEC_FULL.md
// names it explicitly as the out-of-pack choice for code-host access, so it
// is named here rather than grounded on a pack precedent. The adapter's
// shape (Opener/Adapter split, credential-bound client-per-call) still
// follows the cloudwatch/prometheus adapters in this package tree.
package github

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v66/github"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/provider"
)

const providerName provider.Name = "github"

// RepoClient mirrors the subset of *github.Client used by the adapter, so
// unit tests can substitute a fake.
type RepoClient interface {
	GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
	ListByOrg(ctx context.Context, org string, opts *github.RepositoryListByOrgOptions) ([]*github.Repository, *github.Response, error)
	ListCommits(ctx context.Context, owner, repo string, opts *github.CommitsListOptions) ([]*github.RepositoryCommit, *github.Response, error)
	Code(ctx context.Context, query string, opts *github.SearchOptions) (*github.CodeSearchResult, *github.Response, error)
}

// Opener constructs credential-bound Adapters from per-workspace
// domain.IntegrationCredential records.
type Opener struct {
	Credentials domain.IntegrationCredentialStore
}

// NewOpener builds an Opener. creds must not be nil.
func NewOpener(creds domain.IntegrationCredentialStore) *Opener {
	return &Opener{Credentials: creds}
}

// Open implements provider.Opener.Open for the github provider.
func (o *Opener) Open(ctx context.Context, workspace string, h provider.Handle) (provider.Adapter, error) {
	if h.Provider != providerName {
		return nil, fmt.Errorf("github: unsupported provider %q", h.Provider)
	}
	cred, err := o.Credentials.LoadCredential(ctx, workspace, domain.IntegrationGitHub)
	if err != nil {
		return nil, err
	}
	client := github.NewClient(nil).WithAuthToken(cred.SecretValue)
	if cred.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cred.BaseURL, cred.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("github: enterprise client: %w", err)
		}
	}
	return &Adapter{repos: repoClientAdapter{client: client}, capability: h.Capability}, nil
}

// repoClientAdapter narrows *github.Client down to RepoClient.
type repoClientAdapter struct{ client *github.Client }

func (a repoClientAdapter) GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error) {
	return a.client.Repositories.GetContents(ctx, owner, repo, path, opts)
}

func (a repoClientAdapter) ListByOrg(ctx context.Context, org string, opts *github.RepositoryListByOrgOptions) ([]*github.Repository, *github.Response, error) {
	return a.client.Repositories.ListByOrg(ctx, org, opts)
}

func (a repoClientAdapter) ListCommits(ctx context.Context, owner, repo string, opts *github.CommitsListOptions) ([]*github.RepositoryCommit, *github.Response, error) {
	return a.client.Repositories.ListCommits(ctx, owner, repo, opts)
}

func (a repoClientAdapter) Code(ctx context.Context, query string, opts *github.SearchOptions) (*github.CodeSearchResult, *github.Response, error) {
	return a.client.Search.Code(ctx, query, opts)
}

// Adapter implements provider.Adapter for one (workspace, capability) pair
// bound to a GitHub REST client.
type Adapter struct {
	repos      RepoClient
	capability provider.Capability
}

func (a *Adapter) Capability() provider.Capability { return a.capability }
func (a *Adapter) Provider() provider.Name          { return providerName }

type readInput struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Path  string `json:"path"`
	Ref   string `json:"ref,omitempty"`
}

type searchInput struct {
	Query string `json:"query"`
}

type commitsInput struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Path  string `json:"path,omitempty"`
}

type reposInput struct {
	Org string `json:"org"`
}

// Call implements provider.Adapter.Call.
func (a *Adapter) Call(ctx context.Context, input []byte) ([]byte, error) {
	switch a.capability {
	case provider.CapCodeRead:
		return a.callRead(ctx, input)
	case provider.CapCodeSearch:
		return a.callSearch(ctx, input)
	case provider.CapCodeListCommits:
		return a.callListCommits(ctx, input)
	case provider.CapCodeListRepos:
		return a.callListRepos(ctx, input)
	default:
		return nil, fmt.Errorf("github: unsupported capability %q", a.capability)
	}
}

func (a *Adapter) callRead(ctx context.Context, input []byte) ([]byte, error) {
	var in readInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("github: invalid input: %w", err)
	}
	var opts *github.RepositoryContentGetOptions
	if in.Ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: in.Ref}
	}
	file, dir, _, err := a.repos.GetContents(ctx, in.Owner, in.Repo, in.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("github: get contents: %w", err)
	}
	if file != nil {
		content, err := file.GetContent()
		if err != nil {
			return nil, fmt.Errorf("github: decode content: %w", err)
		}
		return json.Marshal(map[string]string{"path": in.Path, "content": content})
	}
	names := make([]string, 0, len(dir))
	for _, entry := range dir {
		names = append(names, entry.GetPath())
	}
	return json.Marshal(map[string]any{"path": in.Path, "entries": names})
}

func (a *Adapter) callSearch(ctx context.Context, input []byte) ([]byte, error) {
	var in searchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("github: invalid input: %w", err)
	}
	result, _, err := a.repos.Code(ctx, in.Query, &github.SearchOptions{ListOptions: github.ListOptions{PerPage: 20}})
	if err != nil {
		return nil, fmt.Errorf("github: code search: %w", err)
	}
	type hit struct {
		Repo string `json:"repo"`
		Path string `json:"path"`
	}
	hits := make([]hit, 0, len(result.CodeResults))
	for _, r := range result.CodeResults {
		hits = append(hits, hit{Repo: r.GetRepository().GetFullName(), Path: r.GetPath()})
	}
	return json.Marshal(hits)
}

func (a *Adapter) callListCommits(ctx context.Context, input []byte) ([]byte, error) {
	var in commitsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("github: invalid input: %w", err)
	}
	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: 20}}
	if in.Path != "" {
		opts.Path = in.Path
	}
	commits, _, err := a.repos.ListCommits(ctx, in.Owner, in.Repo, opts)
	if err != nil {
		return nil, fmt.Errorf("github: list commits: %w", err)
	}
	type commit struct {
		SHA     string `json:"sha"`
		Message string `json:"message"`
		Author  string `json:"author"`
	}
	out := make([]commit, 0, len(commits))
	for _, c := range commits {
		out = append(out, commit{
			SHA:     c.GetSHA(),
			Message: c.GetCommit().GetMessage(),
			Author:  c.GetCommit().GetAuthor().GetName(),
		})
	}
	return json.Marshal(out)
}

func (a *Adapter) callListRepos(ctx context.Context, input []byte) ([]byte, error) {
	var in reposInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("github: invalid input: %w", err)
	}
	repos, _, err := a.repos.ListByOrg(ctx, in.Org, &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: 50}})
	if err != nil {
		return nil, fmt.Errorf("github: list repos: %w", err)
	}
	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.GetFullName())
	}
	return json.Marshal(names)
}
