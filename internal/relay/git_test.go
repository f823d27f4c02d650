package relay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	return dir, repo
}

func writeData(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, "data", name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func headCommit(t *testing.T, repo *git.Repository) *object.Commit {
	t.Helper()
	ref, err := repo.Head()
	require.NoError(t, err)
	c, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	return c
}

func TestGitPublisher_CommitOnly(t *testing.T) {
	dir, repo := initRepo(t)
	pub, err := NewGitPublisher(GitConfig{RepoPath: dir})
	require.NoError(t, err)

	p := writeData(t, dir, "account.json", `[]`)
	require.NoError(t, pub.Publish(context.Background(), []string{p}, "Добавлен новый пользователь"))

	c := headCommit(t, repo)
	assert.Equal(t, "Добавлен новый пользователь", c.Message)
	assert.Equal(t, "enrollkeeper", c.Author.Name)

	f, err := c.File("data/account.json")
	require.NoError(t, err)
	body, err := f.Contents()
	require.NoError(t, err)
	assert.Equal(t, `[]`, body)
}

func TestGitPublisher_CleanTreeIsNotAnError(t *testing.T) {
	dir, repo := initRepo(t)
	pub, err := NewGitPublisher(GitConfig{RepoPath: dir})
	require.NoError(t, err)

	p := writeData(t, dir, "purchase.json", `{}`)
	require.NoError(t, pub.Publish(context.Background(), []string{p}, "Выдан курс"))
	first := headCommit(t, repo).Hash

	require.NoError(t, pub.Publish(context.Background(), []string{p}, "Выдан курс"))
	assert.Equal(t, first, headCommit(t, repo).Hash)
}

func TestGitPublisher_MissingRemote(t *testing.T) {
	dir, repo := initRepo(t)
	pub, err := NewGitPublisher(GitConfig{RepoPath: dir, Remote: "origin"})
	require.NoError(t, err)

	p := writeData(t, dir, "account.json", `[]`)
	err = pub.Publish(context.Background(), []string{p}, "msg")
	require.Error(t, err)
	assert.ErrorIs(t, err, git.ErrRemoteNotFound)

	// the local commit survives the failed push
	assert.Equal(t, "msg", headCommit(t, repo).Message)
}

func TestGitPublisher_PathOutsideRepo(t *testing.T) {
	dir, _ := initRepo(t)
	pub, err := NewGitPublisher(GitConfig{RepoPath: dir})
	require.NoError(t, err)

	outside := filepath.Join(t.TempDir(), "account.json")
	err = pub.Publish(context.Background(), []string{outside}, "msg")
	assert.ErrorContains(t, err, "outside repository")
}

func TestNewGitPublisher_NotARepo(t *testing.T) {
	_, err := NewGitPublisher(GitConfig{RepoPath: t.TempDir()})
	assert.ErrorIs(t, err, git.ErrRepositoryNotExists)
}
