package geocode

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"parking-rank/internal/errs"
	"parking-rank/internal/geo"
	"parking-rank/internal/logger"
	"parking-rank/internal/metrics"
)

// 文档注释：服务健康状态缓存
type status struct {
	healthy bool
	last    time.Time
	err     string
}

type entry struct {
	p        Provider
	priority int
	seq      int
}

// 文档注释：地理编码服务管理器
// 背景：负责注册、心跳与按优先级串行调用；首个返回区域内结果的服务胜出，其余不再调用。
// 约束：心跳失败的服务排到队尾而不是剔除，避免健康状态滞后时无服务可用；每个服务单独套 timeout。
type Manager struct {
	mu         sync.RWMutex
	ps         []entry
	st         map[string]status
	hbInterval time.Duration
	timeout    time.Duration
}

func NewManager(timeout, heartbeat time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Manager{st: make(map[string]status), hbInterval: heartbeat, timeout: timeout}
}

// 文档注释：注册服务
// 约束：priority 越小越先调用；同优先级按注册顺序。同名服务重复注册时替换旧实例。
func (m *Manager) Register(p Provider, priority int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq := len(m.ps)
	for i, e := range m.ps {
		if e.p.Name() == p.Name() {
			m.ps = append(m.ps[:i], m.ps[i+1:]...)
			seq = e.seq
			break
		}
	}
	m.ps = append(m.ps, entry{p: p, priority: priority, seq: seq})
	sort.SliceStable(m.ps, func(i, j int) bool {
		if m.ps[i].priority != m.ps[j].priority {
			return m.ps[i].priority < m.ps[j].priority
		}
		return m.ps[i].seq < m.ps[j].seq
	})
	m.st[p.Name()] = status{healthy: true, last: time.Now()}
	logger.L().Info("geocoder_registered", "name", p.Name(), "priority", priority)
}

// 文档注释：调用顺序
// 约束：健康服务在前、不健康服务在后，组内保持优先级顺序。
func (m *Manager) Ordered() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var healthy, sick []Provider
	for _, e := range m.ps {
		if m.st[e.p.Name()].healthy {
			healthy = append(healthy, e.p)
		} else {
			sick = append(sick, e.p)
		}
	}
	return append(healthy, sick...)
}

// ProviderStatus 对外展示的健康状态
type ProviderStatus struct {
	Name     string    `json:"name"`
	Priority int       `json:"priority"`
	Healthy  bool      `json:"healthy"`
	Checked  time.Time `json:"checked_at"`
	Error    string    `json:"error,omitempty"`
}

func (m *Manager) Status() []ProviderStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ProviderStatus, 0, len(m.ps))
	for _, e := range m.ps {
		s := m.st[e.p.Name()]
		out = append(out, ProviderStatus{Name: e.p.Name(), Priority: e.priority, Healthy: s.healthy, Checked: s.last, Error: s.err})
	}
	return out
}

// 文档注释：启动心跳循环
// 背景：周期性调用服务 Heartbeat 更新健康状态；在 ctx 取消时停止。
func (m *Manager) Start(ctx context.Context) {
	t := time.NewTicker(m.hbInterval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Heartbeat(ctx)
			}
		}
	}()
}

// Heartbeat 执行一轮心跳；网络调用在锁外进行
func (m *Manager) Heartbeat(ctx context.Context) {
	m.mu.RLock()
	ps := make([]Provider, 0, len(m.ps))
	for _, e := range m.ps {
		ps = append(ps, e.p)
	}
	m.mu.RUnlock()
	for _, p := range ps {
		hctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := p.Heartbeat(hctx)
		cancel()
		s := status{healthy: err == nil, last: time.Now()}
		if err != nil {
			s.err = err.Error()
			logger.L().Debug("geocoder_heartbeat_fail", "name", p.Name(), "err", err)
			metrics.ProviderHeartbeatTotal.WithLabelValues(p.Name(), "fail").Inc()
		} else {
			logger.L().Debug("geocoder_heartbeat_ok", "name", p.Name())
			metrics.ProviderHeartbeatTotal.WithLabelValues(p.Name(), "ok").Inc()
		}
		m.mu.Lock()
		m.st[p.Name()] = s
		m.mu.Unlock()
	}
}

// Hit 成功的查询结果及其来源服务
type Hit struct {
	Result   Result
	Provider string
}

// 文档注释：按顺序查询，直到某个服务返回区域内结果
// 返回：
//   - 成功：hit 非空；
//   - 任一服务返回了区域外结果：out_of_region；
//   - 全部服务报错，或 ctx 在得到结论前结束：service_unavailable（超时保留 context.DeadlineExceeded）；
//   - 其余（都答复了但无结果）：resolution_failed。
//
// definitive 为 true 表示每个服务都给出了答复（无网络类错误），此时失败结论可以缓存。
func (m *Manager) Lookup(ctx context.Context, text string, box geo.BBox) (hit *Hit, definitive bool, err error) {
	ps := m.Ordered()
	if len(ps) == 0 {
		return nil, false, errs.ServiceUnavailable("no geocoder configured", nil)
	}
	var (
		failures    []error
		outOfRegion []string
		answered    int
	)
	for _, p := range ps {
		if cerr := ctx.Err(); cerr != nil {
			failures = append(failures, cerr)
			break
		}
		res, perr := m.call(ctx, p, text, box)
		switch {
		case perr != nil:
			failures = append(failures, perr)
		case res == nil:
			answered++
		case !box.Contains(res.Point):
			answered++
			outOfRegion = append(outOfRegion, p.Name())
			metrics.ProviderFailTotal.WithLabelValues(p.Name(), "out_of_region").Inc()
			logger.L().Info("geocoder_out_of_region", "provider", p.Name(), "query", text, "lat", res.Point.Lat, "lon", res.Point.Lon)
		default:
			metrics.ProviderSuccessTotal.WithLabelValues(p.Name()).Inc()
			return &Hit{Result: *res, Provider: p.Name()}, true, nil
		}
	}
	definitive = len(failures) == 0
	switch {
	case len(outOfRegion) > 0:
		return nil, definitive, errs.OutOfRegion("%q resolved outside the region by %v", text, outOfRegion)
	case ctx.Err() != nil:
		return nil, false, errs.ServiceUnavailable("geocoding abandoned", ctx.Err())
	case answered == 0:
		return nil, false, errs.ServiceUnavailable("all geocoders failed", errors.Join(failures...))
	}
	return nil, definitive, errs.ResolutionFailed("no geocoder result for %q", text)
}

func (m *Manager) call(ctx context.Context, p Provider, text string, box geo.BBox) (*Result, error) {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	t0 := time.Now()
	metrics.ProviderRequestsTotal.WithLabelValues(p.Name()).Inc()
	res, err := p.Lookup(cctx, text, box)
	metrics.ProviderDurationMs.WithLabelValues(p.Name()).Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.ProviderFailTotal.WithLabelValues(p.Name(), reason).Inc()
		logger.L().Warn("geocoder_fail", "provider", p.Name(), "query", text, "reason", reason, "err", err)
		return nil, err
	}
	if res == nil {
		metrics.ProviderFailTotal.WithLabelValues(p.Name(), "empty").Inc()
		logger.L().Debug("geocoder_empty", "provider", p.Name(), "query", text)
		return nil, nil
	}
	if !res.Point.Valid() {
		metrics.ProviderFailTotal.WithLabelValues(p.Name(), "invalid").Inc()
		return nil, errors.New(p.Name() + ": invalid coordinates in response")
	}
	return res, nil
}
