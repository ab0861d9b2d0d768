package pgmgmt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/saascore/saas-cloud/instance-manager/platform/pc"
	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/saasproto"
	"github.com/stretchr/testify/require"
)

func TestEnsureScript(t *testing.T) {
	script := EnsureScript("acme_corp", "pa'ss", "acme_corp")
	expected := `SELECT CASE WHEN EXISTS (SELECT 1 FROM pg_roles WHERE rolname = 'acme_corp')
  THEN format('ALTER ROLE %I WITH LOGIN PASSWORD %L', 'acme_corp', 'pa''ss')
  ELSE format('CREATE ROLE %I WITH LOGIN PASSWORD %L', 'acme_corp', 'pa''ss') END
\gexec
SELECT format('CREATE DATABASE %I OWNER %I', 'acme_corp', 'acme_corp')
  WHERE NOT EXISTS (SELECT 1 FROM pg_database WHERE datname = 'acme_corp')
\gexec
`
	require.Equal(t, expected, script)
}

func TestLiteralEscaping(t *testing.T) {
	tests := []struct {
		password string
		literal  string
	}{
		{"plain", `'plain'`},
		{"it's", `'it''s'`},
		{"''", `''''''`},
		{`back\slash`, ` E'back\\slash'`},
		{`both'\`, ` E'both''\\'`},
		{"$HOME`id`", "'$HOME`id`'"},
	}
	for _, test := range tests {
		script := EnsureScript("u", test.password, "d")
		require.Contains(t, script, "'u', "+test.literal+")", "password %q", test.password)
	}
}

func TestEnsureCommand(t *testing.T) {
	psql := Psql{Port: 5433}
	cmd := psql.EnsureCommand("acme", "x\nSAAS_SQL\n", "acme")
	lines := strings.Split(cmd, "\n")
	require.Equal(t, "sudo -u postgres psql -p 5433 -v ON_ERROR_STOP=1 <<'SAAS_SQL_'", lines[0])
	require.Equal(t, "SAAS_SQL_", lines[len(lines)-1])

	psql = Psql{Command: "psql -U admin"}
	cmd = psql.EnsureCommand("acme", "pw", "acme")
	require.True(t, strings.HasPrefix(cmd, "psql -U admin -p 5432 -v ON_ERROR_STOP=1 <<'SAAS_SQL'\n"))
}

func TestEnsure(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	client := pc.NewDummyClient("db")
	psql := Psql{Port: 5432}

	require.Nil(t, psql.Ensure(ctx, client, "acme", "pw", "acme"))
	require.Nil(t, psql.Ensure(ctx, client, "acme", "pw2", "acme"))
	// each ensure is one remote call
	require.Equal(t, 2, len(client.Cmds))
	require.Contains(t, client.Cmds[1], "'pw2'")

	client.On("psql", pc.DummyResponse{ExitCode: 3, ErrOut: "psql: could not connect to server"})
	err := psql.Ensure(ctx, client, "acme", "pw", "acme")
	require.True(t, errors.Is(err, saasproto.ErrRemoteCommandFailure))
	require.Contains(t, err.Error(), "could not connect")

	require.NotNil(t, psql.Ensure(ctx, client, "", "pw", "acme"))
}

func TestDrop(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	client := pc.NewDummyClient("db")
	psql := Psql{}

	warnings := psql.Drop(ctx, client, "acme", "acme")
	require.Empty(t, warnings)
	require.Equal(t, 3, len(client.Cmds))
	require.Contains(t, client.Cmds[0], "pg_terminate_backend")
	require.Contains(t, client.Cmds[1], `DROP DATABASE IF EXISTS "acme";`)
	require.Contains(t, client.Cmds[2], `DROP ROLE IF EXISTS "acme";`)

	// failures do not stop the remaining statements
	client = pc.NewDummyClient("db")
	client.On("DROP DATABASE", pc.DummyResponse{ExitCode: 1, ErrOut: "database is being accessed by other users"})
	warnings = psql.Drop(ctx, client, "acme", "acme")
	require.Equal(t, 1, len(warnings))
	require.Equal(t, 3, len(client.Cmds))
	require.Contains(t, warnings[0], "DROP DATABASE")

	require.Equal(t, `DROP ROLE IF EXISTS "we""ird";`, DropStatements(`we"ird`, "d")[2])
}
