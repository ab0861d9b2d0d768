// Package pgmgmt manages per-instance postgres roles and databases
// through the psql CLI on the database server.
//
// Values are embedded into generated scripts, never passed as query
// parameters, so quoting is explicit:
//   - string literals use pq.QuoteLiteral: ' is doubled, and a
//     backslash switches to the E'...' form with \ doubled
//   - identifiers are quoted by the server with format('%I')
//   - the script is passed on stdin through a heredoc with a quoted
//     delimiter, so the shell expands nothing inside it
package pgmgmt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/saascore/saas-cloud/instance-manager/platform/pc"
	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/util"
)

const (
	DefaultPsqlCommand = "sudo -u postgres psql"
	scriptDelim        = "SAAS_SQL"
)

// Psql describes how to reach the SQL engine on a database server.
type Psql struct {
	Command string
	Port    int
	Timeout time.Duration
}

func (s *Psql) cmd() string {
	command := s.Command
	if command == "" {
		command = DefaultPsqlCommand
	}
	port := s.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("%s -p %d -v ON_ERROR_STOP=1", command, port)
}

// EnsureScript returns the SQL that creates the role, or resets its
// password if it exists, and creates the database owned by the role
// if it does not exist. \gexec runs the generated statement.
func EnsureScript(user, password, dbName string) string {
	u := pq.QuoteLiteral(user)
	pw := pq.QuoteLiteral(password)
	d := pq.QuoteLiteral(dbName)
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT CASE WHEN EXISTS (SELECT 1 FROM pg_roles WHERE rolname = %s)\n", u)
	fmt.Fprintf(&b, "  THEN format('ALTER ROLE %%I WITH LOGIN PASSWORD %%L', %s, %s)\n", u, pw)
	fmt.Fprintf(&b, "  ELSE format('CREATE ROLE %%I WITH LOGIN PASSWORD %%L', %s, %s) END\n", u, pw)
	b.WriteString("\\gexec\n")
	fmt.Fprintf(&b, "SELECT format('CREATE DATABASE %%I OWNER %%I', %s, %s)\n", d, u)
	fmt.Fprintf(&b, "  WHERE NOT EXISTS (SELECT 1 FROM pg_database WHERE datname = %s)\n", d)
	b.WriteString("\\gexec\n")
	return b.String()
}

// DropStatements returns the teardown statements in execution order.
func DropStatements(user, dbName string) []string {
	return []string{
		fmt.Sprintf("SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = %s AND pid <> pg_backend_pid();", pq.QuoteLiteral(dbName)),
		fmt.Sprintf("DROP DATABASE IF EXISTS %s;", pq.QuoteIdentifier(dbName)),
		fmt.Sprintf("DROP ROLE IF EXISTS %s;", pq.QuoteIdentifier(user)),
	}
}

// EnsureCommand is the full shell command run on the database server.
func (s *Psql) EnsureCommand(user, password, dbName string) string {
	return util.Heredoc(s.cmd(), scriptDelim, EnsureScript(user, password, dbName))
}

// Ensure converges the role and database in a single remote call.
// Running it again with a new password updates the role.
func (s *Psql) Ensure(ctx context.Context, client pc.Executor, user, password, dbName string) error {
	log.SpanLog(ctx, log.DebugLevelDeploy, "ensure database", "user", user, "db", dbName)
	if user == "" || dbName == "" {
		return fmt.Errorf("database user and name required")
	}
	_, err := pc.Run(ctx, client, "database provisioning", s.EnsureCommand(user, password, dbName), s.Timeout)
	return err
}

// Drop terminates connections and drops the database and role. Every
// statement runs on its own and failures are only reported back as
// warnings, so teardown continues after out-of-band removal.
func (s *Psql) Drop(ctx context.Context, client pc.Executor, user, dbName string) []string {
	log.SpanLog(ctx, log.DebugLevelDeploy, "drop database", "user", user, "db", dbName)
	warnings := []string{}
	for _, stmt := range DropStatements(user, dbName) {
		cmd := util.Heredoc(s.cmd(), scriptDelim, stmt)
		if _, err := pc.Run(ctx, client, "database teardown", cmd, s.Timeout); err != nil {
			log.SpanLog(ctx, log.DebugLevelDeploy, "ignoring database teardown failure", "stmt", stmt, "err", err)
			warnings = append(warnings, fmt.Sprintf("%s: %v", stmt, err))
		}
	}
	return warnings
}
