package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
	"storefront/internal/testutil"
)

func fakeConnect(u *testutil.Users, indexErr error) (connectFunc, *int) {
	closed := 0
	return func() (*store, error) {
		return &store{
			Users:         u,
			EnsureIndexes: func() error { return indexErr },
			Close:         func() { closed++ },
		}, nil
	}, &closed
}

func TestCreateAdminCommand(t *testing.T) {
	u := testutil.NewUsers()
	connect, closed := fakeConnect(u, nil)

	cmd := createAdminCmd(connect)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--name", "Ops", "--email", "OPS@example.com", "--password", "password1"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "admin ops@example.com created")
	assert.Equal(t, 1, *closed)

	admin, err := u.FindByEmail(context.Background(), "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
}

func TestCreateAdminCommandPasswordFromEnv(t *testing.T) {
	t.Setenv("STOREFRONT_ADMIN_PASSWORD", "password1")
	u := testutil.NewUsers()
	connect, _ := fakeConnect(u, nil)

	cmd := createAdminCmd(connect)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--name", "Ops", "--email", "ops@example.com"})

	require.NoError(t, cmd.Execute())
}

func TestCreateAdminCommandReportsValidation(t *testing.T) {
	u := testutil.NewUsers()
	connect, _ := fakeConnect(u, nil)

	cmd := createAdminCmd(connect)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--name", "Ops", "--email", "ops@example.com", "--password", "short"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Password should have at least"))
}

func TestEnsureIndexesCommand(t *testing.T) {
	connect, closed := fakeConnect(testutil.NewUsers(), nil)
	cmd := ensureIndexesCmd(connect)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "indexes ensured\n", out.String())
	assert.Equal(t, 1, *closed)

	failing, _ := fakeConnect(testutil.NewUsers(), errors.New("boom"))
	cmd = ensureIndexesCmd(failing)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)
	assert.EqualError(t, cmd.Execute(), "boom")
}
