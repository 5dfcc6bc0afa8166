package consumer

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/processor"
)

// SaveChangesToPostgreSQL appends every committed change set to a history
// table, one row per entity write. Rows are keyed by event, kind and entity
// so a replayed change set inserts nothing.
type SaveChangesToPostgreSQL struct {
	db         *sql.DB
	table      string
	processors []processor.Processor
	logger     *zap.Logger
}

type PostgresConfig struct {
	DSN            string
	Host           string
	Port           int
	Database       string
	Username       string
	Password       string
	SSLMode        string
	Table          string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnectTimeout int
}

var historyTable = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func parsePostgresConfig(config map[string]interface{}) (PostgresConfig, error) {
	pgConfig := PostgresConfig{
		Port:           intField(config, "port", 5432),
		SSLMode:        "disable",
		Table:          "entity_changes",
		MaxOpenConns:   intField(config, "max_open_conns", 10),
		MaxIdleConns:   intField(config, "max_idle_conns", 2),
		ConnectTimeout: intField(config, "connect_timeout", 10),
	}
	if table, ok := config["table"].(string); ok && table != "" {
		pgConfig.Table = table
	}
	if !historyTable.MatchString(pgConfig.Table) {
		return pgConfig, fmt.Errorf("invalid table name: %s", pgConfig.Table)
	}
	if sslMode, ok := config["ssl_mode"].(string); ok {
		pgConfig.SSLMode = sslMode
	}
	if dsn, ok := config["dsn"].(string); ok && dsn != "" {
		pgConfig.DSN = dsn
		return pgConfig, nil
	}

	required := []struct {
		key string
		dst *string
	}{
		{"host", &pgConfig.Host},
		{"database", &pgConfig.Database},
		{"username", &pgConfig.Username},
	}
	for _, f := range required {
		v, ok := config[f.key].(string)
		if !ok || v == "" {
			return pgConfig, fmt.Errorf("missing %s in config", f.key)
		}
		*f.dst = v
	}
	pgConfig.Password, _ = config["password"].(string)
	pgConfig.DSN = fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		pgConfig.Host, pgConfig.Port, pgConfig.Database, pgConfig.Username, pgConfig.Password, pgConfig.SSLMode, pgConfig.ConnectTimeout,
	)
	return pgConfig, nil
}

func NewSaveChangesToPostgreSQL(config map[string]interface{}, logger *zap.Logger) (*SaveChangesToPostgreSQL, error) {
	pgConfig, err := parsePostgresConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL configuration: %w", err)
	}

	db, err := sql.Open("postgres", pgConfig.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(pgConfig.MaxOpenConns)
	db.SetMaxIdleConns(pgConfig.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(pgConfig.ConnectTimeout)*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	c, err := NewSaveChangesToPostgreSQLWithDB(ctx, db, pgConfig.Table, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewSaveChangesToPostgreSQLWithDB uses an open database and creates the
// history table if needed.
func NewSaveChangesToPostgreSQLWithDB(ctx context.Context, db *sql.DB, table string, logger *zap.Logger) (*SaveChangesToPostgreSQL, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !historyTable.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %s", table)
	}
	c := &SaveChangesToPostgreSQL{db: db, table: table, logger: logger.Named("postgres-history")}
	if err := c.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return c, nil
}

func (c *SaveChangesToPostgreSQL) initSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			event_id TEXT NOT NULL,
			event_name TEXT NOT NULL,
			emitter TEXT NOT NULL,
			block_number BIGINT NOT NULL,
			log_index INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			kind TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			op TEXT NOT NULL,
			body JSONB,
			recorded_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (event_id, kind, entity_id)
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_entity ON %[1]s(kind, entity_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_position ON %[1]s(block_number, log_index);
	`, c.table))
	return err
}

func (c *SaveChangesToPostgreSQL) Subscribe(processor processor.Processor) {
	c.processors = append(c.processors, processor)
}

func (c *SaveChangesToPostgreSQL) Process(ctx context.Context, msg processor.Message) error {
	cs, err := processor.ExtractChangeSet(msg)
	if err != nil {
		return err
	}
	if len(cs.Changes) == 0 {
		return processor.ForwardToProcessors(ctx, msg, c.processors)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (event_id, event_name, emitter, block_number, log_index, outcome, kind, entity_id, op, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id, kind, entity_id) DO NOTHING`, c.table))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range cs.Changes {
		var body interface{}
		if len(ch.Body) > 0 {
			body = string(ch.Body)
		}
		if _, err := stmt.ExecContext(ctx, cs.EventID, cs.Name, cs.Address,
			int64(cs.Position.BlockNumber), int64(cs.Position.LogIndex), cs.Outcome,
			ch.Kind, ch.ID, string(ch.Op), body); err != nil {
			return fmt.Errorf("failed to insert change %s/%s: %w", ch.Kind, ch.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit changes of %s: %w", cs.EventID, err)
	}
	c.logger.Debug("recorded change set", zap.String("event_id", cs.EventID), zap.Int("changes", len(cs.Changes)))
	return processor.ForwardToProcessors(ctx, msg, c.processors)
}

func (c *SaveChangesToPostgreSQL) Close() error {
	return c.db.Close()
}
