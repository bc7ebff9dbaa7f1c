package monitor

import (
	"sync"
	"time"
)

// State 监控器运行状态
type State string

const (
	StateIdle    State = "idle"    // 未启动
	StateRunning State = "running" // 运行中
	StatePaused  State = "paused"  // 暂停（手动或非交易时段）
	StateStopped State = "stopped" // 已停止
)

// CheckError 单次检查失败记录
type CheckError struct {
	Time    time.Time `json:"time"`
	Code    string    `json:"code"`
	Stage   string    `json:"stage"` // quote, ai, trade
	Message string    `json:"message"`
}

// errorRing 固定容量的错误环形缓冲区，旧记录被新记录覆盖
type errorRing struct {
	mu     sync.Mutex
	buf    []CheckError
	next   int
	filled bool
}

func newErrorRing(size int) *errorRing {
	if size <= 0 {
		size = 50
	}
	return &errorRing{buf: make([]CheckError, size)}
}

func (r *errorRing) add(e CheckError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = e
	r.next++
	if r.next >= len(r.buf) {
		r.next = 0
		r.filled = true
	}
}

// snapshot 按时间顺序返回当前记录
func (r *errorRing) snapshot() []CheckError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.filled {
		out := make([]CheckError, r.next)
		copy(out, r.buf[:r.next])
		return out
	}

	out := make([]CheckError, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}

// Status 监控器状态快照（供 API 查询）
type Status struct {
	State          State        `json:"state"`
	StartedAt      time.Time    `json:"started_at,omitempty"`
	LastCheckAt    time.Time    `json:"last_check_at,omitempty"`
	IntervalSec    int          `json:"interval_seconds"`
	Stocks         []string     `json:"stocks"`
	AIEnabled      bool         `json:"ai_enabled"`
	AutoTrade      bool         `json:"auto_trade"`
	TotalChecks    int64        `json:"total_checks"`
	TotalDecisions int64        `json:"total_decisions"`
	TotalTrades    int64        `json:"total_trades"`
	RecentErrors   []CheckError `json:"recent_errors"`
}
