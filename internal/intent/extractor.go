package intent

import (
	"context"
	"strings"
	"time"

	"parking-rank/internal/errs"
	"parking-rank/internal/logger"
	"parking-rank/internal/metrics"
	"parking-rank/internal/region"
)

const DefaultTimeout = 20 * time.Second

// 文档注释：意图提取器
// 背景：主后端（通常为 LLM）失败或给不出任何字段时，可选回退到离线解析器。
// 约束：输出一律经过校验；区域外坐标丢弃、非有限数值丢弃、未知步行偏好丢弃；显式 alpha 优先于步行偏好。
type Extractor struct {
	primary  Parser
	fallback Parser
	region   *region.Validator
	timeout  time.Duration
}

// NewExtractor fallback 可为 nil
func NewExtractor(primary, fallback Parser, v *region.Validator, timeout time.Duration) *Extractor {
	if v == nil {
		v = region.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{primary: primary, fallback: fallback, region: v, timeout: timeout}
}

// Backend 主后端名称
func (x *Extractor) Backend() string {
	if x.primary == nil {
		return ""
	}
	return x.primary.Name()
}

// 文档注释：提取
// 约束：后端不可用且无回退时返回 ServiceUnavailable；超时保留 context.DeadlineExceeded 于错误链中；
// 提取到的坐标在区域外时返回 OutOfRegion，不改用默认起点。
func (x *Extractor) Extract(ctx context.Context, text string) (Request, error) {
	if strings.TrimSpace(text) == "" {
		return Request{}, errs.InvalidParameter("text", "text must not be empty")
	}
	if x.primary == nil {
		return Request{}, errs.ServiceUnavailable("no intent backend configured", nil)
	}
	req, err := x.run(ctx, x.primary, text)
	if x.fallback != nil && (err != nil || req.Empty()) && ctx.Err() == nil {
		logger.L().Info("intent_fallback", "from", x.primary.Name(), "to", x.fallback.Name(), "err", err)
		if fr, ferr := x.run(ctx, x.fallback, text); ferr == nil {
			req, err = fr, nil
		}
	}
	if err != nil {
		return Request{}, err
	}
	req = x.sanitize(req)
	if req.Origin != nil && !x.region.Contains(*req.Origin) {
		logger.L().Info("intent_origin_out_of_region", "lat", req.Origin.Lat, "lon", req.Origin.Lon)
		return Request{}, errs.OutOfRegion("extracted origin %s is outside the region", *req.Origin)
	}
	return req, nil
}

func (x *Extractor) run(ctx context.Context, p Parser, text string) (Request, error) {
	cctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()
	start := time.Now()
	req, err := p.Parse(cctx, text)
	metrics.IntentDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	status := "ok"
	switch {
	case err != nil:
		status = "fail"
		logger.L().Warn("intent_backend_fail", "backend", p.Name(), "err", err)
		if errs.KindOf(err) == "" {
			err = errs.ServiceUnavailable("intent backend "+p.Name()+" failed", err)
		}
	case req.Empty():
		status = "empty"
	}
	metrics.IntentRequestsTotal.WithLabelValues(p.Name(), status).Inc()
	return req, err
}

func (x *Extractor) sanitize(r Request) Request {
	r.OriginText = strings.TrimSpace(r.OriginText)
	r.RadiusMi = finitePtr(r.RadiusMi)
	if r.RadiusMi != nil && *r.RadiusMi <= 0 {
		r.RadiusMi = nil
	}
	r.Alpha = finitePtr(r.Alpha)
	r.Beta = finitePtr(r.Beta)
	if r.TopN != nil && *r.TopN <= 0 {
		r.TopN = nil
	}
	r.Walking = normalizeWalking(r.Walking)
	if r.Alpha == nil && r.Walking != "" {
		a := walkingAlpha[r.Walking]
		r.Alpha = &a
	}
	return r
}
