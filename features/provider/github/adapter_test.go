package github

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	ghsdk "github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/require"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/provider"
)

type fakeRepoClient struct {
	file  *ghsdk.RepositoryContent
	dir   []*ghsdk.RepositoryContent
	repos []*ghsdk.Repository
	commits []*ghsdk.RepositoryCommit
	search *ghsdk.CodeSearchResult
	err   error
}

func (f *fakeRepoClient) GetContents(ctx context.Context, owner, repo, path string, opts *ghsdk.RepositoryContentGetOptions) (*ghsdk.RepositoryContent, []*ghsdk.RepositoryContent, *ghsdk.Response, error) {
	return f.file, f.dir, nil, f.err
}

func (f *fakeRepoClient) ListByOrg(ctx context.Context, org string, opts *ghsdk.RepositoryListByOrgOptions) ([]*ghsdk.Repository, *ghsdk.Response, error) {
	return f.repos, nil, f.err
}

func (f *fakeRepoClient) ListCommits(ctx context.Context, owner, repo string, opts *ghsdk.CommitsListOptions) ([]*ghsdk.RepositoryCommit, *ghsdk.Response, error) {
	return f.commits, nil, f.err
}

func (f *fakeRepoClient) Code(ctx context.Context, query string, opts *ghsdk.SearchOptions) (*ghsdk.CodeSearchResult, *ghsdk.Response, error) {
	return f.search, nil, f.err
}

func TestAdapter_Call_ReadFile(t *testing.T) {
	content := "package main"
	a := &Adapter{capability: provider.CapCodeRead, repos: &fakeRepoClient{
		file: &ghsdk.RepositoryContent{Content: &content, Encoding: ghsdk.String("")},
	}}

	out, err := a.Call(context.Background(), []byte(`{"owner":"acme","repo":"api","path":"main.go"}`))
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, "package main", decoded["content"])
}

func TestAdapter_Call_ReadDirectoryListsEntries(t *testing.T) {
	a := &Adapter{capability: provider.CapCodeRead, repos: &fakeRepoClient{
		dir: []*ghsdk.RepositoryContent{{Path: ghsdk.String("main.go")}, {Path: ghsdk.String("go.mod")}},
	}}

	out, err := a.Call(context.Background(), []byte(`{"owner":"acme","repo":"api","path":""}`))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	entries, ok := decoded["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 2)
}

func TestAdapter_Call_SearchReturnsHits(t *testing.T) {
	a := &Adapter{capability: provider.CapCodeSearch, repos: &fakeRepoClient{
		search: &ghsdk.CodeSearchResult{CodeResults: []*ghsdk.CodeResult{
			{Path: ghsdk.String("pkg/foo.go"), Repository: &ghsdk.Repository{FullName: ghsdk.String("acme/api")}},
		}},
	}}

	out, err := a.Call(context.Background(), []byte(`{"query":"TODO"}`))
	require.NoError(t, err)
	require.Contains(t, string(out), "acme/api")
}

func TestAdapter_Call_ListCommits(t *testing.T) {
	a := &Adapter{capability: provider.CapCodeListCommits, repos: &fakeRepoClient{
		commits: []*ghsdk.RepositoryCommit{{SHA: ghsdk.String("abc123")}},
	}}

	out, err := a.Call(context.Background(), []byte(`{"owner":"acme","repo":"api"}`))
	require.NoError(t, err)
	require.Contains(t, string(out), "abc123")
}

func TestAdapter_Call_ListRepos(t *testing.T) {
	a := &Adapter{capability: provider.CapCodeListRepos, repos: &fakeRepoClient{
		repos: []*ghsdk.Repository{{FullName: ghsdk.String("acme/api")}, {FullName: ghsdk.String("acme/web")}},
	}}

	out, err := a.Call(context.Background(), []byte(`{"org":"acme"}`))
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal(out, &names))
	require.ElementsMatch(t, []string{"acme/api", "acme/web"}, names)
}

func TestAdapter_Call_PropagatesClientError(t *testing.T) {
	a := &Adapter{capability: provider.CapCodeListRepos, repos: &fakeRepoClient{err: errors.New("rate limited")}}

	_, err := a.Call(context.Background(), []byte(`{"org":"acme"}`))
	require.Error(t, err)
}

func TestAdapter_Call_RejectsUnsupportedCapability(t *testing.T) {
	a := &Adapter{capability: provider.CapMetricsQuery, repos: &fakeRepoClient{}}

	_, err := a.Call(context.Background(), []byte(`{}`))
	require.Error(t, err)
}

func TestAdapter_Call_InvalidJSONInput(t *testing.T) {
	a := &Adapter{capability: provider.CapCodeListRepos, repos: &fakeRepoClient{}}

	_, err := a.Call(context.Background(), []byte(`not json`))
	require.Error(t, err)
}
