// 包 api：HTTP JSON 接口与解析→排序流水线
package api

import (
	"context"
	"sync"
	"time"

	"parking-rank/internal/dataset"
	"parking-rank/internal/errs"
	"parking-rank/internal/geo"
	"parking-rank/internal/geocode"
	"parking-rank/internal/intent"
	"parking-rank/internal/logger"
	"parking-rank/internal/rank"
	"parking-rank/internal/region"
	"parking-rank/internal/spatial"
	"parking-rank/internal/store"
)

// 文档注释：服务依赖
// 约束：Manager、Intent、Stats 可为 nil（对应功能不可用）；DataPath 为空时 /reload 返回 503。
type Service struct {
	Engine         *rank.Engine
	Resolver       *geocode.Resolver
	Manager        *geocode.Manager
	Intent         *intent.Extractor
	Stats          *store.Store
	Defaults       rank.Params
	ResolveTimeout time.Duration
	DataPath       string
	IndexKind      spatial.Kind

	reloadMu sync.Mutex
}

// 起点描述；按 preset → 坐标 → 文本 → 默认起点 的顺序取第一个给出的
type OriginSpec struct {
	Preset string
	Point  *geo.Point
	Text   string
	Kind   geocode.Kind
}

// 文档注释：解析起点
// 约束：外部地理编码受 ResolveTimeout 约束，超时以 service_unavailable（链上含 DeadlineExceeded）返回。
func (s *Service) ResolveOrigin(ctx context.Context, o OriginSpec) (geocode.Origin, error) {
	switch {
	case o.Preset != "":
		return s.Resolver.Preset(o.Preset)
	case o.Point != nil:
		src := geocode.SourceCoordinates
		if o.Kind == geocode.KindMapClick {
			src = geocode.SourceMapClick
		}
		return s.Resolver.ResolvePoint(*o.Point, src, "")
	case o.Text != "":
		cctx, cancel := s.withResolveTimeout(ctx)
		defer cancel()
		return s.Resolver.Resolve(cctx, o.Text, o.Kind)
	}
	return s.Resolver.Preset(region.DefaultOrigin.Name)
}

func (s *Service) withResolveTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.ResolveTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.ResolveTimeout)
}

// 文档注释：解析起点并排序
func (s *Service) Rank(ctx context.Context, o OriginSpec, p rank.Params) (*rankResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	origin, err := s.ResolveOrigin(ctx, o)
	if err != nil {
		return nil, err
	}
	rs, err := s.Engine.Rank(ctx, origin.Position, p)
	if err != nil {
		return nil, err
	}
	s.countQuery(ctx)
	return &rankResponse{Origin: origin, Params: p, Unit: p.Unit, Count: len(rs), Results: toItems(rs, p.Unit)}, nil
}

// 文档注释：最近的 k 个路段
func (s *Service) Nearest(ctx context.Context, o OriginSpec, k int, p rank.Params) (*rankResponse, error) {
	origin, err := s.ResolveOrigin(ctx, o)
	if err != nil {
		return nil, err
	}
	rs, err := s.Engine.Nearest(ctx, origin.Position, k, p)
	if err != nil {
		return nil, err
	}
	return &rankResponse{Origin: origin, Params: p, Unit: p.Unit, Count: len(rs), Results: toItems(rs, p.Unit)}, nil
}

// 文档注释：自然语言请求
// 流程：Interpret 得到起点与参数 → 排序。
func (s *Service) Ask(ctx context.Context, text string, base rank.Params) (*rankResponse, error) {
	req, origin, p, err := s.Interpret(ctx, text, base)
	if err != nil {
		return nil, err
	}
	rs, err := s.Engine.Rank(ctx, origin.Position, p)
	if err != nil {
		return nil, err
	}
	s.countQuery(ctx)
	logger.L().Info("intent_ranked", "origin", origin.Label, "source", origin.Source, "results", len(rs))
	return &rankResponse{Origin: origin, Params: p, Unit: p.Unit, Count: len(rs), Results: toItems(rs, p.Unit), Intent: &req}, nil
}

// 文档注释：意图提取 → 以 base 补齐参数并截断 → 解析起点
// 约束：坐标优先，其次文本；只有完全没有起点线索时才用默认起点，区域外的坐标以 out_of_region 失败。
func (s *Service) Interpret(ctx context.Context, text string, base rank.Params) (intent.Request, geocode.Origin, rank.Params, error) {
	if s.Intent == nil {
		return intent.Request{}, geocode.Origin{}, base, errs.ServiceUnavailable("intent extraction is not configured", nil)
	}
	req, err := s.Intent.Extract(ctx, text)
	if err != nil {
		return req, geocode.Origin{}, base, err
	}
	p := req.Apply(base)
	var origin geocode.Origin
	switch {
	case req.Origin != nil:
		origin, err = s.Resolver.ResolvePoint(*req.Origin, geocode.SourceAIText, "")
	case req.OriginText != "":
		cctx, cancel := s.withResolveTimeout(ctx)
		origin, err = s.Resolver.ResolveText(cctx, req.OriginText, geocode.SourceAIText)
		cancel()
	default:
		origin, err = s.Resolver.Preset(region.DefaultOrigin.Name)
	}
	return req, origin, p, err
}

// 文档注释：重新加载数据集
// 约束：串行执行；失败时保留旧快照。
func (s *Service) Reload() (dataset.LoadReport, error) {
	if s.DataPath == "" {
		return dataset.LoadReport{}, errs.ServiceUnavailable("no dataset path configured", nil)
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	rep, err := s.Engine.Reload(s.DataPath, s.IndexKind)
	if err != nil {
		logger.L().Error("dataset_reload_error", "path", s.DataPath, "err", err)
		return dataset.LoadReport{}, err
	}
	return rep, nil
}

func (s *Service) countQuery(ctx context.Context) {
	if s.Stats == nil {
		return
	}
	if err := s.Stats.IncrStats(ctx); err != nil {
		logger.L().Debug("stats_incr_error", "err", err)
	}
}
