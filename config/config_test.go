package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalCoreUserRemote(t *testing.T) {
	text := `
[core]
	bare = true
[user]
	name = Jane Doe
	email = jane@example.com
[remote "origin"]
	url = https://example.com/repo.git
	fetch = +refs/heads/*:refs/remotes/origin/*
`
	cfg, err := ReadConfig(strings.NewReader(text))
	require.NoError(t, err)

	assert.True(t, cfg.Core.IsBare)
	assert.Equal(t, "Jane Doe", cfg.User.Name)
	assert.Equal(t, "jane@example.com", cfg.User.Email)

	require.Contains(t, cfg.Remotes, "origin")
	r := cfg.Remotes["origin"]
	assert.Equal(t, "origin", r.Name)
	assert.Equal(t, []string{"https://example.com/repo.git"}, r.URLs)
	require.Len(t, r.Fetch, 1)
	assert.Equal(t, "+refs/heads/*:refs/remotes/origin/*", r.Fetch[0].String())
}

func TestUnmarshalBranch(t *testing.T) {
	text := `
[branch "main"]
	remote = origin
	merge = refs/heads/main
	rebase = true
`
	cfg, err := ReadConfig(strings.NewReader(text))
	require.NoError(t, err)

	require.Contains(t, cfg.Branches, "main")
	b := cfg.Branches["main"]
	assert.Equal(t, "origin", b.Remote)
	assert.Equal(t, "refs/heads/main", b.Merge.String())
	assert.Equal(t, "true", b.Rebase)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Core.IsBare = true
	cfg.User.Name = "Jane Doe"
	cfg.User.Email = "jane@example.com"
	cfg.Remotes["origin"] = &RemoteConfig{
		Name:  "origin",
		URLs:  []string{"https://example.com/repo.git"},
		Fetch: []RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
	}

	b, err := cfg.Marshal()
	require.NoError(t, err)

	got, err := ReadConfig(strings.NewReader(string(b)))
	require.NoError(t, err)

	assert.True(t, got.Core.IsBare)
	assert.Equal(t, "Jane Doe", got.User.Name)
	require.Contains(t, got.Remotes, "origin")
	assert.Equal(t, []string{"https://example.com/repo.git"}, got.Remotes["origin"].URLs)
}

func TestValidateRejectsMismatchedRemoteKey(t *testing.T) {
	cfg := NewConfig()
	cfg.Remotes["origin"] = &RemoteConfig{Name: "not-origin", URLs: []string{"u"}}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestValidateAppliesDefaultFetchRefSpec(t *testing.T) {
	cfg := NewConfig()
	cfg.Remotes["origin"] = &RemoteConfig{Name: "origin", URLs: []string{"u"}}
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Remotes["origin"].Fetch, 1)
	assert.Equal(t, "+refs/heads/*:refs/remotes/origin/*", cfg.Remotes["origin"].Fetch[0].String())
}

func TestMergeLocalOverridesGlobalOverridesSystem(t *testing.T) {
	system := NewConfig()
	system.User.Name = "System User"
	system.User.Email = "system@example.com"
	system.Core.IsBare = true

	global := NewConfig()
	global.User.Name = "Global User"

	local := NewConfig()
	local.User.Email = "local@example.com"

	merged, err := Merge(local, global, system)
	require.NoError(t, err)

	assert.Equal(t, "Global User", merged.User.Name)
	assert.Equal(t, "local@example.com", merged.User.Email)
	assert.True(t, merged.Core.IsBare)
}

func TestURLInsteadOfRewritesRemoteURL(t *testing.T) {
	text := `
[url "git@github.com:"]
	insteadOf = https://github.com/
[remote "origin"]
	url = https://github.com/example/repo.git
`
	cfg, err := ReadConfig(strings.NewReader(text))
	require.NoError(t, err)

	require.Contains(t, cfg.Remotes, "origin")
	assert.Equal(t, "git@github.com:example/repo.git", cfg.Remotes["origin"].URLs[0])
}
