package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/harrison-roh/crop-disease-classification/cropapp/logging"
)

// MySQLStore MySQL 테이블 저장소
type MySQLStore struct {
	TableName string

	db *sql.DB
}

func (conn *MySQLStore) createTable(ctx context.Context) error {
	if _, err := conn.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (
		id CHAR(36) NOT NULL,
		name VARCHAR(80) NOT NULL,
		phone VARCHAR(32) NOT NULL,
		location VARCHAR(120) NOT NULL,
		createAt DATETIME NOT NULL,
		PRIMARY KEY (id),
		INDEX (phone));`, conn.TableName)); err != nil {
		return err
	}

	return nil
}

func (conn *MySQLStore) existsTable(ctx context.Context) bool {
	rows, err := conn.db.QueryContext(ctx, fmt.Sprintf("SELECT 1 FROM %s LIMIT 1;", conn.TableName))
	if err != nil {
		return false
	}
	rows.Close()

	return true
}

func (conn *MySQLStore) initTable(ctx context.Context) error {
	if !conn.existsTable(ctx) {
		logging.Info().Str("table", conn.TableName).Msg("Create DB table")
		return conn.createTable(ctx)
	}

	return nil
}

// FindByPhone 전화번호가 같은 첫 행
func (conn *MySQLStore) FindByPhone(ctx context.Context, phone string) (*Farmer, error) {
	var f Farmer

	err := conn.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, name, phone, location FROM %s WHERE phone = ? LIMIT 1;", conn.TableName),
		phone,
	).Scan(&f.ID, &f.Name, &f.Phone, &f.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &f, nil
}

// Insert 행 삽입
func (conn *MySQLStore) Insert(ctx context.Context, f Farmer) error {
	_, err := conn.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (
		id,
		name,
		phone,
		location,
		createAt) value (?, ?, ?, ?, ?);`, conn.TableName),
		f.ID, f.Name, f.Phone, f.Location, f.CreateAt,
	)

	return err
}

// Destroy db connection 해제
func (conn *MySQLStore) Destroy() error {
	return conn.db.Close()
}

func (conn *MySQLStore) Name() string {
	return DriverMySQL
}

// NewMySQL 새로운 db connection 생성
func NewMySQL(ctx context.Context, dsn, table string) (*MySQLStore, error) {
	db, err := sql.Open(DriverMySQL, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("Fail to connect MySQL: %w", err)
	}

	conn := &MySQLStore{
		TableName: table,
		db:        db,
	}

	if err := conn.initTable(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return conn, nil
}
