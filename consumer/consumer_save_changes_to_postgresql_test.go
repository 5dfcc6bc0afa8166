package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
	"github.com/withObsrvr/asset-graph-indexer/processor"
)

func historyChangeSet() processor.ChangeSet {
	return processor.ChangeSet{
		EventID:  "0xabc000000000",
		Name:     "MintCompleted",
		Address:  "0x00000000000000000000000000000000000000b1",
		Position: event.Position{BlockNumber: 7, LogIndex: 2},
		Outcome:  "applied",
		Changes: []store.Change{
			{Op: store.OpPut, Kind: "asset", ID: "0xb1", Body: json.RawMessage(`{"id":"0xb1"}`)},
			{Op: store.OpDelete, Kind: "balance", ID: "0xb1a1"},
		},
	}
}

func newHistoryConsumer(t *testing.T) (*SaveChangesToPostgreSQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS entity_changes").WillReturnResult(sqlmock.NewResult(0, 0))
	c, err := NewSaveChangesToPostgreSQLWithDB(context.Background(), db, "entity_changes", nil)
	require.NoError(t, err)
	return c, mock
}

func TestParsePostgresConfig(t *testing.T) {
	cfg, err := parsePostgresConfig(map[string]interface{}{
		"host": "db", "database": "graph", "username": "indexer", "password": "secret", "port": 6543,
	})
	require.NoError(t, err)
	assert.Equal(t, "entity_changes", cfg.Table)
	assert.Contains(t, cfg.DSN, "host=db port=6543 dbname=graph user=indexer")

	cfg, err = parsePostgresConfig(map[string]interface{}{"dsn": "postgres://localhost/graph", "table": "history"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/graph", cfg.DSN)
	assert.Equal(t, "history", cfg.Table)

	_, err = parsePostgresConfig(map[string]interface{}{"host": "db"})
	assert.ErrorContains(t, err, "missing")

	_, err = parsePostgresConfig(map[string]interface{}{"dsn": "x", "table": "drop table;"})
	assert.ErrorContains(t, err, "invalid table name")
}

func TestSaveChangesToPostgreSQL_Process(t *testing.T) {
	c, mock := newHistoryConsumer(t)
	cs := historyChangeSet()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO entity_changes")
	prep.ExpectExec().
		WithArgs(cs.EventID, "MintCompleted", cs.Address, int64(7), int64(2), "applied", "asset", "0xb1", "put", `{"id":"0xb1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(cs.EventID, "MintCompleted", cs.Address, int64(7), int64(2), "applied", "balance", "0xb1a1", "delete", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next := &captureProcessor{}
	c.Subscribe(next)
	require.NoError(t, c.Process(context.Background(), processor.Message{Payload: cs}))
	assert.Len(t, next.messages, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveChangesToPostgreSQL_RollsBackOnError(t *testing.T) {
	c, mock := newHistoryConsumer(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO entity_changes").ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := c.Process(context.Background(), processor.Message{Payload: historyChangeSet()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveChangesToPostgreSQL_EmptyChangeSet(t *testing.T) {
	c, mock := newHistoryConsumer(t)
	require.NoError(t, c.Process(context.Background(), processor.Message{Payload: processor.ChangeSet{EventID: "0x01"}}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type captureProcessor struct {
	messages []processor.Message
}

func (c *captureProcessor) Process(_ context.Context, msg processor.Message) error {
	c.messages = append(c.messages, msg)
	return nil
}

func (c *captureProcessor) Subscribe(processor.Processor) {}
