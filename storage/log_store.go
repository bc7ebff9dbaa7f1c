package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"papertrader/utils"
)

// LogStore 日志落库存储（独立 SQLite，与主库分离）
// 写入异步批量提交，供 Web 端查询与实时推送
type LogStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	logCh  chan *logEntry
	closed bool

	subMu       sync.RWMutex
	subscribers []chan *LogRecord
}

type logEntry struct {
	level     string
	message   string
	timestamp time.Time
}

// LogRecord 日志记录
type LogRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// LogQuery 日志查询参数
type LogQuery struct {
	StartTime time.Time
	EndTime   time.Time
	Level     string
	Keyword   string
	Limit     int
	Offset    int
}

const (
	logBatchSize     = 100
	logFlushInterval = 1 * time.Second
	maxSubscribers   = 100
)

// NewLogStore 创建日志存储
func NewLogStore(path string, bufferSize int) (*LogStore, error) {
	if bufferSize <= 0 {
		bufferSize = 500
	}

	// WAL 模式提升并发读性能
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("打开日志数据库失败: %w", err)
	}

	// SQLite 单写者限制
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ls := &LogStore{
		db:    db,
		logCh: make(chan *logEntry, bufferSize),
	}

	if err := ls.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建日志表失败: %w", err)
	}

	go ls.processLogs()
	return ls, nil
}

func (ls *LogStore) createTable() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
	`
	_, err := ls.db.Exec(ddl)
	return err
}

// WriteLog 写入日志（异步，队列满时丢弃）
func (ls *LogStore) WriteLog(level, message string) {
	if ls.closed {
		return
	}

	entry := &logEntry{
		level:     level,
		message:   message,
		timestamp: utils.NowCST(),
	}

	select {
	case ls.logCh <- entry:
	default:
	}
}

// processLogs 异步批量写入循环
func (ls *LogStore) processLogs() {
	buffer := make([]*logEntry, 0, logBatchSize)
	ticker := time.NewTicker(logFlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		ls.mu.Lock()
		ls.batchInsert(buffer)
		ls.mu.Unlock()
		buffer = buffer[:0]
	}

	for {
		select {
		case entry, ok := <-ls.logCh:
			if !ok {
				flush()
				return
			}
			buffer = append(buffer, entry)
			if len(buffer) >= logBatchSize {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

// batchInsert 事务批量插入，失败静默（不能影响主流程）
func (ls *LogStore) batchInsert(entries []*logEntry) {
	tx, err := ls.db.Begin()
	if err != nil {
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO logs (timestamp, level, message) VALUES (?, ?, ?)")
	if err != nil {
		return
	}
	defer stmt.Close()

	inserted := make([]*LogRecord, 0, len(entries))
	for _, entry := range entries {
		result, err := stmt.Exec(entry.timestamp, entry.level, entry.message)
		if err != nil {
			return
		}
		id, _ := result.LastInsertId()
		inserted = append(inserted, &LogRecord{
			ID:        id,
			Timestamp: entry.timestamp,
			Level:     entry.level,
			Message:   entry.message,
		})
	}

	if err := tx.Commit(); err != nil {
		return
	}
	ls.notifySubscribers(inserted)
}

// Subscribe 订阅新写入的日志（用于 WebSocket 实时推送）
func (ls *LogStore) Subscribe() chan *LogRecord {
	ls.subMu.Lock()
	defer ls.subMu.Unlock()

	ch := make(chan *LogRecord, 100)
	ls.subscribers = append(ls.subscribers, ch)

	// 超限时淘汰最旧的订阅者
	if len(ls.subscribers) > maxSubscribers {
		oldest := ls.subscribers[0]
		close(oldest)
		ls.subscribers = ls.subscribers[1:]
	}
	return ch
}

// Unsubscribe 取消订阅
func (ls *LogStore) Unsubscribe(ch chan *LogRecord) {
	ls.subMu.Lock()
	defer ls.subMu.Unlock()

	for i, sub := range ls.subscribers {
		if sub == ch {
			ls.subscribers = append(ls.subscribers[:i], ls.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (ls *LogStore) notifySubscribers(logs []*LogRecord) {
	ls.subMu.RLock()
	subscribers := make([]chan *LogRecord, len(ls.subscribers))
	copy(subscribers, ls.subscribers)
	ls.subMu.RUnlock()

	go func() {
		for _, record := range logs {
			for _, sub := range subscribers {
				select {
				case sub <- record:
				default:
				}
			}
		}
	}()
}

// GetLogs 查询日志，返回记录与总数
func (ls *LogStore) GetLogs(params LogQuery) ([]*LogRecord, int, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	where := []string{"1=1"}
	args := []interface{}{}

	if !params.StartTime.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, params.StartTime)
	}
	if !params.EndTime.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, params.EndTime)
	}
	if params.Level != "" {
		where = append(where, "level = ?")
		args = append(args, params.Level)
	}
	if params.Keyword != "" {
		where = append(where, "message LIKE ?")
		args = append(args, "%"+params.Keyword+"%")
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM logs WHERE %s", whereClause)
	if err := ls.db.QueryRow(countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询日志总数失败: %w", err)
	}

	if params.Limit <= 0 {
		params.Limit = 100
	}
	if params.Limit > 1000 {
		params.Limit = 1000
	}

	querySQL := fmt.Sprintf(`
		SELECT id, timestamp, level, message
		FROM logs
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`, whereClause)
	args = append(args, params.Limit, params.Offset)

	rows, err := ls.db.Query(querySQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询日志失败: %w", err)
	}
	defer rows.Close()

	var logs []*LogRecord
	for rows.Next() {
		var record LogRecord
		if err := rows.Scan(&record.ID, &record.Timestamp, &record.Level, &record.Message); err != nil {
			continue
		}
		logs = append(logs, &record)
	}
	return logs, total, nil
}

// GetStats 日志统计信息
func (ls *LogStore) GetStats() (map[string]interface{}, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	stats := make(map[string]interface{})

	var totalCount int64
	if err := ls.db.QueryRow("SELECT COUNT(*) FROM logs").Scan(&totalCount); err != nil {
		return nil, err
	}
	stats["total"] = totalCount

	levelStats := make(map[string]int64)
	rows, err := ls.db.Query("SELECT level, COUNT(*) FROM logs GROUP BY level")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var count int64
		if err := rows.Scan(&level, &count); err != nil {
			continue
		}
		levelStats[level] = count
	}
	stats["by_level"] = levelStats
	return stats, nil
}

// CleanOldLogs 清理超过保留天数的日志
func (ls *LogStore) CleanOldLogs(days int) (int64, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	cutoff := utils.NowCST().AddDate(0, 0, -days)
	result, err := ls.db.Exec("DELETE FROM logs WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Vacuum 回收 SQLite 空间
func (ls *LogStore) Vacuum() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	_, err := ls.db.Exec("VACUUM")
	return err
}

// StartRetentionLoop 启动定期清理（每天一次）
func (ls *LogStore) StartRetentionLoop(retentionDays int, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n, err := ls.CleanOldLogs(retentionDays); err == nil && n > 0 {
					ls.Vacuum()
				}
			}
		}
	}()
}

// Close 关闭日志存储
func (ls *LogStore) Close() error {
	ls.mu.Lock()
	if ls.closed {
		ls.mu.Unlock()
		return nil
	}
	ls.closed = true
	ls.mu.Unlock()

	close(ls.logCh)

	ls.subMu.Lock()
	for _, sub := range ls.subscribers {
		close(sub)
	}
	ls.subscribers = nil
	ls.subMu.Unlock()

	// 给写入协程留出刷新时间
	time.Sleep(200 * time.Millisecond)

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.db.Close()
}
