package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
	"github.com/iliyamo/school-rfid-admin/internal/repository/memory"
	"github.com/iliyamo/school-rfid-admin/internal/utils"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &commandLine{
		users:      memory.NewUserStore(memory.Open()),
		bcryptCost: 4,
		out:        out,
	}, out
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
}

func promptReturns(pwd string) func(int) ([]byte, error) {
	return func(int) ([]byte, error) { return []byte(pwd), nil }
}

func Test_commandLine_migrate(t *testing.T) {
	cli, out := setup(t)
	var ran int
	migrateFunc = func(context.Context, *sqlx.DB) error { ran++; return nil }
	versionFunc = func(context.Context, *sqlx.DB) (int64, error) { return 1, nil }

	require.NoError(t, cli.run([]string{"admin", "migrate"}))
	require.NoError(t, cli.run([]string{"admin", "migrate", "up"}))
	assert.Equal(t, 2, ran)

	require.NoError(t, cli.run([]string{"admin", "migrate", "version"}))
	assert.Contains(t, out.String(), "schema version 1")

	err := cli.run([]string{"admin", "migrate", "sideways"})
	assert.EqualError(t, err, `"sideways": no such migrate command`)
}

func Test_commandLine_createSuperAdmin(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no username", args: []string{"createsuperadmin"}, wantErr: errHelp},
		{name: "no password", args: []string{"createsuperadmin", "-username", "root"}, wantErr: errHelp},
		{name: "create", args: []string{"createsuperadmin", "-username", "root"}, pwd: "s3cret"},
		{name: "already exists", args: []string{"createsuperadmin", "-username", "root"}, pwd: "other", wantErr: repository.ErrUsernameExists},
	}
	for _, tt := range tests {
		readPasswordFunc = promptReturns(tt.pwd)
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
		})
	}

	u, err := cli.users.GetByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, u.Role)
	assert.Nil(t, u.SchoolID)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "s3cret"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)
	hash, err := utils.HashPassword("old", 4)
	require.NoError(t, err)
	require.NoError(t, cli.users.Create(context.Background(), &model.User{Username: "admin1", PasswordHash: hash, Role: model.RoleSuperAdmin}))

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "admin1"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "x", wantErr: repository.ErrUserNotFound},
		{name: "reset", args: []string{"resetpassword", "-username", "admin1"}, pwd: "new"},
	}
	for _, tt := range tests {
		readPasswordFunc = promptReturns(tt.pwd)
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
		})
	}

	u, err := cli.users.GetByUsername(context.Background(), "admin1")
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "new"))
}
