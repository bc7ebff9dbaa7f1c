package config

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, path string, interval int) {
	t.Helper()
	yaml := `
account:
  initial_capital: 1000000
stocks:
  - code: "600519"
    name: "贵州茅台"
    stop_loss_rate: 0.05
    take_profit_rate: 0.10
monitor:
  interval_seconds: ` + strconv.Itoa(interval) + `
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
}

func TestConfigWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeTestConfig(t, path, 60)

	cw, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatalf("创建监控器失败: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer cw.Stop()

	if err := cw.Start(ctx); err != nil {
		t.Fatalf("启动监控失败: %v", err)
	}
	if err := cw.Start(ctx); err == nil {
		t.Error("重复启动应报错")
	}

	// 确保修改时间可区分
	time.Sleep(50 * time.Millisecond)
	writeTestConfig(t, path, 120)

	select {
	case cfg := <-cw.GetUpdateChan():
		if cfg.Monitor.IntervalSeconds != 120 {
			t.Errorf("热更新后检查周期错误: %d", cfg.Monitor.IntervalSeconds)
		}
		t.Log("✅ 配置热更新触发")
	case <-time.After(5 * time.Second):
		t.Fatal("未收到配置更新")
	}
}

func TestConfigWatcherRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeTestConfig(t, path, 60)

	cw, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatalf("创建监控器失败: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer cw.Stop()

	if err := cw.Start(ctx); err != nil {
		t.Fatalf("启动监控失败: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	// 非法证券代码无法通过验证
	if err := os.WriteFile(path, []byte(`stocks: [{code: "999999"}]`), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	select {
	case <-cw.GetUpdateChan():
		t.Fatal("非法配置不应被投递")
	case err := <-cw.GetErrorChan():
		t.Logf("✅ 非法配置被拒绝: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("未收到错误报告")
	}
}
