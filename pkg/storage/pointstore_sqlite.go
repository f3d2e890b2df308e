package storage

import (
	"database/sql"
	"encoding/json"
	"path/filepath"

	"emssimulate/pkg/runtime"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	_ "modernc.org/sqlite"
)

var _ PointStore = (*SqlitePointStore)(nil)

const pointSchema = `
CREATE TABLE IF NOT EXISTS points (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id TEXT NOT NULL,
	code       TEXT NOT NULL UNIQUE,
	record     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_points_channel ON points(channel_id);
`

// SqlitePointStore point records in one sqlite table, the record itself is kept as
// json next to its indexed columns.
type SqlitePointStore struct {
	db *sql.DB
}

func NewSqlitePointStore(root, dsn string) (*SqlitePointStore, error) {
	if len(dsn) == 0 {
		if _, err := NewFsClient(root, StoreGroupChannel); err != nil {
			return nil, err
		}
		dsn = filepath.Join(root, StoreGroupToString[StoreGroupChannel], "points.db")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open point database")
	}
	// sqlite 单写
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(pointSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create point schema")
	}
	klog.V(2).InfoS("Opened point database", "dsn", dsn)
	return &SqlitePointStore{db: db}, nil
}

func (s *SqlitePointStore) LoadPoints(channelID string) ([]*runtime.PointRecord, error) {
	rows, err := s.db.Query(`SELECT id, record FROM points WHERE channel_id = ? ORDER BY id`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*runtime.PointRecord
	for rows.Next() {
		var id int64
		var data string
		if err = rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		r := &runtime.PointRecord{}
		if err = json.Unmarshal([]byte(data), r); err != nil {
			return nil, errors.Wrapf(err, "decode point %d", id)
		}
		r.ID = id
		r.ChannelID = channelID
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SqlitePointStore) exists(q interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}, code string) (bool, error) {
	var n int
	if err := q.QueryRow(`SELECT COUNT(1) FROM points WHERE code = ?`, code).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func insertRecord(tx *sql.Tx, channelID string, record *runtime.PointRecord) (int64, error) {
	saved := *record
	saved.ID = 0
	saved.ChannelID = ""
	data, err := json.Marshal(&saved)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(`INSERT INTO points (channel_id, code, record) VALUES (?, ?, ?)`, channelID, record.Code, string(data))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SqlitePointStore) CreatePoint(channelID string, record *runtime.PointRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	taken, err := s.exists(tx, record.Code)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, errDuplicateCode(record.Code)
	}
	id, err := insertRecord(tx, channelID, record)
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

func (s *SqlitePointStore) UpdatePointMetadata(code string, fields map[string]interface{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id int64
	var data string
	err = tx.QueryRow(`SELECT id, record FROM points WHERE code = ?`, code).Scan(&id, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return errPointNotFound(code)
	} else if err != nil {
		return err
	}
	record := &runtime.PointRecord{}
	if err = json.Unmarshal([]byte(data), record); err != nil {
		return err
	}
	merged, err := record.Merge(fields)
	if err != nil {
		return err
	}
	if merged.Code != code {
		taken, err := s.exists(tx, merged.Code)
		if err != nil {
			return err
		}
		if taken {
			return errDuplicateCode(merged.Code)
		}
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if _, err = tx.Exec(`UPDATE points SET code = ?, record = ? WHERE id = ?`, merged.Code, string(out), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqlitePointStore) DeletePoint(code string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM points WHERE code = ?`, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SqlitePointStore) SavePoints(channelID string, records []*runtime.PointRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err = tx.Exec(`DELETE FROM points WHERE channel_id = ?`, channelID); err != nil {
		return err
	}
	var lookupErr error
	if err = checkBatch(records, func(code string) bool {
		taken, err := s.exists(tx, code)
		if err != nil {
			lookupErr = err
		}
		return taken
	}); err != nil {
		return err
	}
	if lookupErr != nil {
		return lookupErr
	}
	for _, r := range records {
		if _, err = insertRecord(tx, channelID, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SqlitePointStore) DeleteChannel(channelID string) error {
	_, err := s.db.Exec(`DELETE FROM points WHERE channel_id = ?`, channelID)
	return err
}

func (s *SqlitePointStore) Close() error {
	return s.db.Close()
}
