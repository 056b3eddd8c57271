package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// fastConfig returns a gateway config with millisecond backoff for tests.
func fastConfig(retries int) Config {
	return Config{
		Retries:     retries,
		Backoff:     10 * time.Millisecond,
		BusyTimeout: 0,
	}
}

// createTestGateway creates a gateway suitable for tests.
func createTestGateway(t *testing.T, retries int) *Gateway {
	t.Helper()
	return NewGateway(fastConfig(retries))
}

// createTestDatabase creates a database file with a single table and returns its path.
func createTestDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	g := createTestGateway(t, 1)

	conn, err := g.OpenReadWrite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenReadWrite() failed: %v", err)
	}
	defer conn.Close()

	if _, err := conn.DB().Exec(`CREATE TABLE activities (activity_id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	if _, err := conn.DB().Exec(`INSERT INTO activities (activity_id, name) VALUES (1001, 'easy'), (1002, 'tempo')`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	return path
}

// verifyPragma checks that a pragma is set to the expected value.
func verifyPragma(t *testing.T, c *Conn, name, expected string) {
	t.Helper()
	var value string
	if err := c.DB().QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		t.Fatalf("failed to query %s: %v", name, err)
	}
	if value != expected {
		t.Errorf("%s = %q, expected %q", name, value, expected)
	}
}
