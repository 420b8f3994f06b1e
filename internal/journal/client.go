package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const (
	defaultTable    = "asset_builds"
	defaultDatabase = "default"
)

const columns = "timestamp, kind, environment, fingerprint, filename, state, hit, files, swept, duration_ms, error"

// Client пишет события сборок в ClickHouse и читает их обратно
type Client struct {
	conn     driver.Conn
	info     JournalInfo
	database string
	table    string
}

// parseURL разбирает URL журнала и возвращает DSN для clickhouse-go
// URL формат: clickhouse://host:port/database?table=xxx&name=Name
func parseURL(urlStr string) (string, JournalInfo, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return "", JournalInfo{}, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "clickhouse" {
		return "", JournalInfo{}, fmt.Errorf("invalid URL scheme %q: expected clickhouse", u.Scheme)
	}
	if u.Host == "" {
		return "", JournalInfo{}, fmt.Errorf("invalid URL: missing host")
	}

	query := u.Query()
	table := query.Get("table")
	if table == "" {
		table = defaultTable
	}
	name := query.Get("name")

	database := strings.TrimPrefix(u.Path, "/")
	if database == "" {
		database = defaultDatabase
	}

	if name == "" {
		name = fmt.Sprintf("%s@%s", database, u.Host)
	}

	hash := sha256.Sum256([]byte(urlStr))
	id := hex.EncodeToString(hash[:4])

	// Убираем наши параметры из URL для clickhouse
	query.Del("table")
	query.Del("name")
	u.RawQuery = query.Encode()
	u.Path = "/" + database

	return u.String(), JournalInfo{
		ID:       id,
		Name:     name,
		Database: database,
		Table:    table,
	}, nil
}

// NewClient подключается к ClickHouse и создаёт таблицу если её нет
func NewClient(urlStr string) (*Client, error) {
	dsn, info, err := parseURL(urlStr)
	if err != nil {
		return nil, err
	}

	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	c := &Client{
		conn:     conn,
		database: info.Database,
		table:    info.Table,
		info:     info,
	}
	if err := c.ensureTable(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	c.info.Status = "connected"
	return c, nil
}

func (c *Client) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			timestamp DateTime64(3),
			kind LowCardinality(String),
			environment LowCardinality(String),
			fingerprint String,
			filename String,
			state LowCardinality(String),
			hit UInt8,
			files Array(String),
			swept UInt32,
			duration_ms Float64,
			error String
		) ENGINE = MergeTree
		ORDER BY (kind, timestamp)
	`, c.database, c.table)

	if err := c.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s.%s: %w", c.database, c.table, err)
	}
	return nil
}

// Info возвращает информацию о журнале
func (c *Client) Info() JournalInfo {
	return c.info
}

// ID возвращает ID журнала
func (c *Client) ID() string {
	return c.info.ID
}

// Insert записывает одно событие
func (c *Client) Insert(ctx context.Context, ev BuildEvent) error {
	return c.InsertBatch(ctx, []BuildEvent{ev})
}

// InsertBatch записывает события одним batch-запросом
func (c *Client) InsertBatch(ctx context.Context, events []BuildEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s.%s (%s)", c.database, c.table, columns))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, ev := range events {
		var hit uint8
		if ev.Hit {
			hit = 1
		}
		files := ev.Files
		if files == nil {
			files = []string{}
		}
		if err := batch.Append(
			ev.Timestamp, ev.Kind, ev.Environment, ev.Fingerprint, ev.Filename, ev.State,
			hit, files, uint32(ev.Swept), ev.DurationMs, ev.Error,
		); err != nil {
			batch.Abort()
			return fmt.Errorf("append: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// buildWhere собирает WHERE по параметрам запроса
func buildWhere(params QueryParams) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if !params.From.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, params.From)
	}
	if !params.To.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, params.To)
	}
	if params.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, params.Kind)
	}
	if params.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, params.State)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// Query выполняет запрос событий с фильтрами, новые первыми
func (c *Client) Query(ctx context.Context, params QueryParams) (*EventsResponse, error) {
	whereClause, args := buildWhere(params)

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	countQuery := fmt.Sprintf("SELECT count() FROM %s.%s %s", c.database, c.table, whereClause)
	var total uint64
	if err := c.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count query failed: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		%s
		ORDER BY timestamp DESC
		LIMIT %d OFFSET %d
	`, columns, c.database, c.table, whereClause, limit, offset)

	rows, err := c.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("data query failed: %w", err)
	}
	defer rows.Close()

	events := []BuildEvent{}
	for rows.Next() {
		var ev BuildEvent
		var hit uint8
		var swept uint32
		if err := rows.Scan(
			&ev.Timestamp, &ev.Kind, &ev.Environment, &ev.Fingerprint, &ev.Filename, &ev.State,
			&hit, &ev.Files, &swept, &ev.DurationMs, &ev.Error,
		); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		ev.Hit = hit == 1
		ev.Swept = int(swept)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &EventsResponse{
		Events: events,
		Total:  int(total),
		Offset: offset,
		Limit:  limit,
	}, nil
}

// Close закрывает соединение
func (c *Client) Close() error {
	return c.conn.Close()
}
