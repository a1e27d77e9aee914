package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	chstore "pat-settlement/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the database named in dsn if needed and
// applies every embedded statement. ClickHouse has no transactional DDL, so
// statements must be idempotent (IF NOT EXISTS). The returned connection
// targets the archive database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	migs, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	// Parse everything before touching the server.
	stmts := make([][]string, len(migs))
	for i, m := range migs {
		if stmts[i], err = splitStatements(m.SQL); err != nil {
			return nil, fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}

	if err := createDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	for i, m := range migs {
		for _, stmt := range stmts[i] {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
	}
	return conn, nil
}

func createDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

// splitStatements splits a script on semicolons, dropping "--" comment
// lines. The driver executes one statement per call. A semicolon inside a
// quoted string is rejected rather than split.
func splitStatements(script string) ([]string, error) {
	var body []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		body = append(body, line)
	}
	src := strings.Join(body, "\n")

	var (
		stmts []string
		start int
		quote bool
	)
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '\'':
			if quote && i+1 < len(src) && src[i+1] == '\'' {
				i++
				continue
			}
			quote = !quote
		case ';':
			if quote {
				return nil, fmt.Errorf("semicolon inside string literal at offset %d", i)
			}
			if stmt := strings.TrimSpace(src[start:i]); stmt != "" {
				stmts = append(stmts, stmt)
			}
			start = i + 1
		}
	}
	if quote {
		return nil, fmt.Errorf("unterminated string literal")
	}
	if stmt := strings.TrimSpace(src[start:]); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
