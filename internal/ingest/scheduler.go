// 包 ingest：在服务进程内按日定时重新加载停车数据集
package ingest

import (
	"context"
	"time"

	"parking-rank/internal/logger"
)

// nextDailyAt：计算 now 之后第一个 loc 时区 hour 整点
// 约束：hour 取值 0..23；结果严格晚于 now。
func nextDailyAt(now time.Time, loc *time.Location, hour int) time.Time {
	n := now.In(loc)
	t := time.Date(n.Year(), n.Month(), n.Day(), hour, 0, 0, 0, loc)
	if !t.After(n) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// 文档注释：每天在 tz 时区 hour 点执行一次 reload
// 背景：上游开放数据按日更新；错误由日志记录，任务继续调度。
// 约束：hour 越界或 reload 为 nil 时不启动；tz 无法加载时回退 UTC；ctx 结束即退出。
func StartDaily(ctx context.Context, tz string, hour int, reload func() error) bool {
	l := logger.L()
	if hour < 0 || hour > 23 || reload == nil {
		return false
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		l.Warn("reload_tz_invalid", "tz", tz, "err", err)
		loc = time.UTC
	}
	next := nextDailyAt(time.Now(), loc, hour)
	l.Info("reload_scheduled", "next", next)
	go func() {
		for {
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			l.Info("reload_start", "at", next)
			if err := reload(); err != nil {
				l.Error("reload_error", "err", err)
			} else {
				l.Info("reload_done")
			}
			next = nextDailyAt(time.Now(), loc, hour)
		}
	}()
	return true
}
