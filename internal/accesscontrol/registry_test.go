package accesscontrol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeployerIsManager(t *testing.T) {
	r := NewRegistry("owner")
	assert.True(t, r.IsManager("owner"))
	assert.False(t, r.IsManager("addr1"))
}

func TestAddRemoveManager(t *testing.T) {
	r := NewRegistry("owner")

	require.NoError(t, r.AddManager("owner", "addr1"))
	assert.True(t, r.IsManager("addr1"))

	require.NoError(t, r.RemoveManager("owner", "addr1"))
	assert.False(t, r.IsManager("addr1"))
}

func TestOnlyOwnerMutates(t *testing.T) {
	r := NewRegistry("owner")
	require.NoError(t, r.AddManager("owner", "addr1"))

	// 管理员也不能增删管理员，只有 owner 可以
	assert.ErrorIs(t, r.AddManager("addr1", "addr2"), ErrUnauthorized)
	assert.ErrorIs(t, r.RemoveManager("addr1", "owner"), ErrUnauthorized)
	assert.True(t, r.IsManager("owner"))
}

func TestIdempotentMutations(t *testing.T) {
	r := NewRegistry("owner")

	require.NoError(t, r.AddManager("owner", "addr1"))
	require.NoError(t, r.AddManager("owner", "addr1"))
	assert.True(t, r.IsManager("addr1"))

	require.NoError(t, r.RemoveManager("owner", "ghost"))
}

func TestSnapshotRestore(t *testing.T) {
	r := NewRegistry("owner")
	require.NoError(t, r.AddManager("owner", "addr2"))
	require.NoError(t, r.AddManager("owner", "addr1"))

	restored := Restore(r.Owner(), r.Managers())
	assert.True(t, restored.IsManager("owner"))
	assert.True(t, restored.IsManager("addr1"))
	assert.True(t, restored.IsManager("addr2"))
	assert.Equal(t, []string{"addr1", "addr2", "owner"}, func() []string {
		var out []string
		for _, m := range restored.Managers() {
			out = append(out, string(m))
		}
		return out
	}())
}
