package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gocql/gocql"

	"rentspot/internal/infra/config"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// NewSession ensures the chat schema exists and returns a connected session.
func NewSession(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.ScyllaKeyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.ScyllaKeyspace)
	}
	consistency, err := parseConsistency(cfg.ScyllaConsistency)
	if err != nil {
		return nil, err
	}

	baseCluster := newCluster(cfg, consistency)
	baseSession, err := baseCluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()

	if err := ensureKeyspace(ctx, baseSession, cfg); err != nil {
		return nil, err
	}

	cluster := newCluster(cfg, consistency)
	cluster.Keyspace = cfg.ScyllaKeyspace
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.ScyllaKeyspace, err)
	}
	if err := ensureTables(ctx, session, cfg.ScyllaKeyspace); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.ScyllaHosts, "keyspace", cfg.ScyllaKeyspace)
	}
	return session, nil
}

func newCluster(cfg config.Config, consistency gocql.Consistency) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.ScyllaHosts...)
	cluster.Timeout = cfg.ScyllaTimeout
	cluster.Consistency = consistency
	if cfg.ScyllaUsername != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.ScyllaUsername,
			Password: cfg.ScyllaPassword,
		}
		// avoid long stalls on auth/connect
		cluster.ConnectTimeout = cfg.ScyllaTimeout
	}
	return cluster
}

func parseConsistency(raw string) (gocql.Consistency, error) {
	if strings.TrimSpace(raw) == "" {
		return gocql.Quorum, nil
	}
	c, err := gocql.ParseConsistencyWrapper(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return 0, fmt.Errorf("invalid SCYLLA_CONSISTENCY: %w", err)
	}
	return c, nil
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, cfg config.Config) error {
	rf := cfg.ScyllaReplication
	if rf <= 0 {
		rf = 1
	}
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.ScyllaKeyspace, rf,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func ensureTables(ctx context.Context, session *gocql.Session, keyspace string) error {
	for name, stmt := range schema(keyspace) {
		if err := session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("create %s table: %w", name, err)
		}
	}
	return nil
}

// schema returns the chat tables. messages are partitioned per conversation
// and clustered oldest first; conversations_by_user indexes a user's threads.
func schema(keyspace string) map[string]string {
	return map[string]string{
		"messages": fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.messages (
	ad_id text,
	pair_key text,
	created_at timestamp,
	message_id text,
	sender_id text,
	receiver_id text,
	body text,
	image text,
	seen boolean,
	PRIMARY KEY ((ad_id, pair_key), created_at, message_id)
) WITH CLUSTERING ORDER BY (created_at ASC, message_id ASC);`, keyspace),
		"conversations_by_user": fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.conversations_by_user (
	user_id text,
	ad_id text,
	pair_key text,
	last_message_at timestamp,
	PRIMARY KEY (user_id, ad_id, pair_key)
);`, keyspace),
	}
}
