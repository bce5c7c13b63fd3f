package capability

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEmpty(t *testing.T) {
	assert.True(t, NewList().IsEmpty())
}

func TestDecode(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Decode([]byte("symref=foo symref=qux thin-pack")))
	assert.Equal(t, []string{"foo", "qux"}, l.Get(SymRef))
	assert.Nil(t, l.Get(ThinPack))
	assert.True(t, l.Supports(ThinPack))
}

func TestDecodeWithLeadingSpace(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Decode([]byte(" report-status")))
	assert.True(t, l.Supports(ReportStatus))
}

func TestDecodeEmpty(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Decode(nil))
	assert.True(t, l.IsEmpty())
}

func TestDecodeRejectsValueOnArgumentlessCapability(t *testing.T) {
	l := NewList()
	assert.ErrorIs(t, l.Decode([]byte("thin-pack=foo")), ErrArguments)
}

func TestDecodeAgentWithEqualInValue(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Decode([]byte("agent=foo=bar")))
	assert.Equal(t, []string{"foo=bar"}, l.Get(Agent))
}

func TestDecodeUnknownCapability(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Decode([]byte("foo")))
	assert.True(t, l.Supports(Capability("foo")))
}

func TestDecodeUnknownCapabilityWithArgument(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Decode([]byte("oldref=HEAD:refs/heads/v2 thin-pack")))
	assert.Equal(t, []string{"HEAD:refs/heads/v2"}, l.Get("oldref"))
	assert.True(t, l.Supports(ThinPack))
}

func TestString(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Set(Agent, "bar"))
	require.NoError(t, l.Set(SymRef, "foo:qux"))
	require.NoError(t, l.Add(ThinPack))

	assert.Equal(t, "agent=bar symref=foo:qux thin-pack", l.String())
}

func TestSetReplacesExistingValue(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add(SymRef, "foo", "qux"))
	require.NoError(t, l.Set(SymRef, "bar"))
	assert.Equal(t, []string{"bar"}, l.Get(SymRef))
}

func TestDelete(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add(Sideband))
	require.NoError(t, l.Set(SymRef, "bar"))
	require.NoError(t, l.Add(Sideband64k))
	l.Delete(SymRef)

	assert.Equal(t, "side-band side-band-64k", l.String())
}

func TestAddRequiresArguments(t *testing.T) {
	l := NewList()
	assert.ErrorIs(t, l.Add(SymRef), ErrArgumentsRequired)
}

func TestAddRejectsArgumentsOnArgumentlessCapability(t *testing.T) {
	l := NewList()
	assert.ErrorIs(t, l.Add(OFSDelta, "foo"), ErrArguments)
}

func TestAddRejectsEmptyArgument(t *testing.T) {
	l := NewList()
	assert.ErrorIs(t, l.Add(SymRef, ""), ErrEmptyArgument)
}

func TestAddRejectsSecondSingleValueCapability(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add(Agent, "foo"))
	assert.ErrorIs(t, l.Add(Agent, "bar"), ErrMultipleArguments)
}

func TestAddRejectsMultipleValuesAtOnceForSingleValueCapability(t *testing.T) {
	l := NewList()
	assert.ErrorIs(t, l.Add(Agent, "foo", "bar"), ErrMultipleArguments)
}

func TestAll(t *testing.T) {
	l := NewList()
	assert.Nil(t, l.All())

	require.NoError(t, l.Add(Agent, "foo"))
	assert.Equal(t, []Capability{Agent}, l.All())

	require.NoError(t, l.Add(OFSDelta))
	assert.Equal(t, []Capability{Agent, OFSDelta}, l.All())
}

func TestDefaultAgent(t *testing.T) {
	os.Unsetenv("GO_GIT_USER_AGENT_EXTRA")
	assert.Equal(t, userAgent, DefaultAgent())
}

func TestEnvAgent(t *testing.T) {
	os.Setenv("GO_GIT_USER_AGENT_EXTRA", "abc xyz")
	defer os.Unsetenv("GO_GIT_USER_AGENT_EXTRA")
	assert.Equal(t, userAgent+" abc xyz", DefaultAgent())
}
