package geocode

import (
	"context"
	"math"
	"strconv"
	"strings"

	"parking-rank/internal/errs"
	"parking-rank/internal/geo"
	"parking-rank/internal/logger"
	"parking-rank/internal/metrics"
	"parking-rank/internal/region"
)

// 起点来源
type Source string

const (
	SourcePreset      Source = "preset"
	SourceCoordinates Source = "coordinates"
	SourceAddress     Source = "address"
	SourceAIText      Source = "ai-text"
	SourceMapClick    Source = "map-click"
)

// 输入类别
type Kind string

const (
	KindCoordinates Kind = "coordinates"
	KindAddress     Kind = "address"
	KindMapClick    Kind = "map-click"
)

// ParseKind 空串按 address
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindAddress, "address-text":
		return KindAddress, nil
	case KindCoordinates, "coords":
		return KindCoordinates, nil
	case KindMapClick, "click":
		return KindMapClick, nil
	}
	return "", errs.InvalidParameter("kind", "unknown input kind %q", s)
}

// 文档注释：排序起点
// 约束：Position 一定在区域内；每次解析生成新值，不做字段级修改。
type Origin struct {
	Position geo.Point `json:"position"`
	Source   Source    `json:"source"`
	Label    string    `json:"label"`
}

// 地理编码查询接口；*Manager 实现
type Lookuper interface {
	Lookup(ctx context.Context, text string, box geo.BBox) (*Hit, bool, error)
}

// 文档注释：起点解析器
// 流程（文本）：别名表 → 缓存 → 外部服务（按优先级）→ 区域校验 → 回写缓存。
// 约束：不做"就近截断"，区域外一律失败；别名命中时以内置坐标为准，不再调用外部服务。
type Resolver struct {
	region *region.Validator
	cache  *Cache
	coder  Lookuper
}

func NewResolver(v *region.Validator, cache *Cache, coder Lookuper) *Resolver {
	if cache == nil {
		cache = NewCache(NewMemoryStore(0), DefaultCacheTTL)
	}
	return &Resolver{region: v, cache: cache, coder: coder}
}

func (r *Resolver) Region() *region.Validator { return r.region }

// 文档注释：按类别解析输入
func (r *Resolver) Resolve(ctx context.Context, input string, kind Kind) (Origin, error) {
	switch kind {
	case KindCoordinates, KindMapClick:
		p, err := ParseCoordinates(input)
		if err != nil {
			return Origin{}, err
		}
		src := SourceCoordinates
		if kind == KindMapClick {
			src = SourceMapClick
		}
		return r.ResolvePoint(p, src, "")
	case KindAddress, "":
		return r.ResolveText(ctx, input, SourceAddress)
	}
	return Origin{}, errs.InvalidParameter("kind", "unknown input kind %q", kind)
}

// 文档注释：直接使用坐标（坐标输入、地图点击、AI 给出的坐标）
// 约束：区域外返回 out_of_region。
func (r *Resolver) ResolvePoint(p geo.Point, src Source, label string) (Origin, error) {
	if !r.region.Contains(p) {
		metrics.ResolveOutcomeTotal.WithLabelValues(string(errs.KindOutOfRegion)).Inc()
		return Origin{}, errs.OutOfRegion("%s is outside the region", p)
	}
	if label == "" {
		label = p.String()
	}
	metrics.ResolveOutcomeTotal.WithLabelValues(string(src)).Inc()
	return Origin{Position: p, Source: src, Label: label}, nil
}

// Preset 预设起点
func (r *Resolver) Preset(name string) (Origin, error) {
	p, ok := r.region.Preset(name)
	if !ok {
		return Origin{}, errs.InvalidParameter("preset", "unknown preset %q", name)
	}
	return r.ResolvePoint(p.Point, SourcePreset, p.Name)
}

// 文档注释：解析自由文本（地址、地名）
// 约束：所有外部服务都给出答复后的失败会以"无结果"标记写入缓存；网络类失败不缓存，下次重新查询。
func (r *Resolver) ResolveText(ctx context.Context, text string, src Source) (Origin, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Origin{}, errs.InvalidParameter("q", "empty location text")
	}
	if poi, ok := r.region.ResolveAlias(text); ok {
		logger.L().Debug("resolve_alias_hit", "text", text, "poi", poi.Name)
		return r.finish(Origin{Position: poi.Point, Source: src, Label: poi.Name}, "alias")
	}
	if e, ok := r.cache.Get(ctx, text); ok {
		if !e.Found {
			metrics.ResolveOutcomeTotal.WithLabelValues(string(e.Miss)).Inc()
			return Origin{}, cachedMiss(e, text)
		}
		return r.finish(Origin{Position: e.Point(), Source: src, Label: e.Label}, "cache")
	}
	if r.coder == nil {
		metrics.ResolveOutcomeTotal.WithLabelValues(string(errs.KindServiceUnavailable)).Inc()
		return Origin{}, errs.ServiceUnavailable("no geocoder configured", nil)
	}
	query := r.region.CanonicalQuery(text)
	hit, definitive, err := r.coder.Lookup(ctx, query, r.region.Box())
	if err != nil {
		kind := errs.KindOf(err)
		if definitive && (kind == errs.KindResolutionFailed || kind == errs.KindOutOfRegion) {
			r.cache.PutMiss(ctx, text, kind)
		}
		metrics.ResolveOutcomeTotal.WithLabelValues(string(kind)).Inc()
		logger.L().Info("resolve_failed", "text", text, "query", query, "kind", kind, "err", err)
		return Origin{}, err
	}
	if !r.region.Contains(hit.Result.Point) {
		metrics.ResolveOutcomeTotal.WithLabelValues(string(errs.KindOutOfRegion)).Inc()
		return Origin{}, errs.OutOfRegion("%q resolved outside the region by %s", text, hit.Provider)
	}
	r.cache.PutHit(ctx, text, *hit)
	label := hit.Result.DisplayName
	if label == "" {
		label = query
	}
	logger.L().Debug("resolve_geocoded", "text", text, "provider", hit.Provider, "lat", hit.Result.Point.Lat, "lon", hit.Result.Point.Lon)
	return r.finish(Origin{Position: hit.Result.Point, Source: src, Label: label}, hit.Provider)
}

func (r *Resolver) finish(o Origin, outcome string) (Origin, error) {
	if !r.region.Contains(o.Position) {
		metrics.ResolveOutcomeTotal.WithLabelValues(string(errs.KindOutOfRegion)).Inc()
		return Origin{}, errs.OutOfRegion("%s is outside the region", o.Position)
	}
	metrics.ResolveOutcomeTotal.WithLabelValues(outcome).Inc()
	return o, nil
}

func cachedMiss(e Entry, text string) error {
	if e.Miss == errs.KindOutOfRegion {
		return errs.OutOfRegion("%q resolved outside the region (cached)", text)
	}
	return errs.ResolutionFailed("no geocoder result for %q (cached)", text)
}

// 文档注释：解析坐标文本
// 约束：接受 "lat, lon" 或 "lat lon"（可带括号）；两个值都必须为有限数。
func ParseCoordinates(s string) (geo.Point, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(strings.TrimSuffix(t, ")"), "(")
	t = strings.TrimPrefix(strings.TrimSuffix(t, "]"), "[")
	fields := strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == ';' })
	if len(fields) != 2 {
		return geo.Point{}, errs.InvalidParameter("q", "expected two numbers \"lat, lon\", got %q", s)
	}
	lat, err1 := strconv.ParseFloat(fields[0], 64)
	lon, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil || math.IsNaN(lat+lon) || math.IsInf(lat+lon, 0) {
		return geo.Point{}, errs.InvalidParameter("q", "coordinates must be finite numbers, got %q", s)
	}
	p := geo.Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return geo.Point{}, errs.OutOfRegion("%q is not a valid coordinate", s)
	}
	return p, nil
}
