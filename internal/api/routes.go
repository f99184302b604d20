package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"parking-rank/internal/errs"
	"parking-rank/internal/geo"
	"parking-rank/internal/geocode"
	"parking-rank/internal/logger"
	"parking-rank/internal/middleware"
	"parking-rank/internal/rank"
)

// 请求体上限
const maxBody = 16 << 10

// 文档注释：构建 API 路由
// 背景：独立 ServeMux，由主入口挂载到 API_BASE 前缀下；/metrics 由主入口单独挂载。
// 约束：adminToken 为空时 /reload 一律 403。
func BuildRoutes(s *Service, adminToken string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/presets", s.handlePresets)
	mux.HandleFunc("/resolve", s.handleResolve)
	mux.HandleFunc("/rank", s.handleRank)
	mux.HandleFunc("/nearest", s.handleNearest)
	mux.HandleFunc("/intent", s.handleIntent)
	mux.HandleFunc("/export", s.handleExport)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/reload", middleware.RequireToken(adminToken, http.HandlerFunc(s.handleReload)))
	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.Engine.Snapshot()
	out := healthResponse{
		Status:    "ok",
		Segments:  snap.Len(),
		Dropped:   snap.Report.Dropped,
		Index:     string(snap.IndexKind()),
		Source:    snap.Report.Source,
		LoadedAt:  snap.Report.LoadedAt,
		Providers: []geocode.ProviderStatus{},
	}
	if snap.Len() == 0 {
		out.Status = "empty"
	}
	if s.Manager != nil {
		out.Providers = s.Manager.Status()
	}
	if s.Intent != nil {
		out.Intent = s.Intent.Backend()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Resolver.Region().Presets())
}

func (s *Service) handleResolve(w http.ResponseWriter, r *http.Request) {
	o, err := parseOrigin(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	origin, err := s.ResolveOrigin(r.Context(), o)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, origin)
}

func (s *Service) handleRank(w http.ResponseWriter, r *http.Request) {
	res, err := s.rankFromQuery(r.Context(), r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) rankFromQuery(ctx context.Context, q url.Values) (*rankResponse, error) {
	o, err := parseOrigin(q)
	if err != nil {
		return nil, err
	}
	p, err := parseParams(q, s.Defaults)
	if err != nil {
		return nil, err
	}
	return s.Rank(ctx, o, p)
}

func (s *Service) handleNearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	o, err := parseOrigin(q)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := parseParams(q, s.Defaults)
	if err != nil {
		writeError(w, err)
		return
	}
	k := 1
	if v := q.Get("k"); v != "" {
		if k, err = strconv.Atoi(v); err != nil {
			writeError(w, errs.InvalidParameter("k", "not an integer: %q", v))
			return
		}
	}
	res, err := s.Nearest(r.Context(), o, k, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST {"text": "..."}；查询串中的参数作为补齐用的基准值
func (s *Service) handleIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&body); err != nil {
		writeError(w, errs.InvalidParameter("text", "request body must be JSON {\"text\": ...}"))
		return
	}
	base, err := parseParams(r.URL.Query(), s.Defaults)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Ask(r.Context(), body.Text, base)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.rankFromQuery(r.Context(), r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	rs := make([]rank.Result, len(res.Results))
	for i, it := range res.Results {
		rs[i] = it.Result
	}
	w.Header().Set("content-type", "text/csv; charset=utf-8")
	w.Header().Set("content-disposition", `attachment; filename="parking_rank.csv"`)
	w.Header().Set("cache-control", "no-store")
	if err := rank.WriteCSV(w, rs, res.Unit); err != nil {
		logger.L().Warn("export_write_error", "err", err)
	}
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.Stats == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "total": 0, "today": 0})
		return
	}
	t, err := s.Stats.GetTotals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "total": t.Total, "today": t.Today})
}

func (s *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rep, err := s.Reload()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// 文档注释：解析起点参数
// 约束：lat 与 lon 必须同时给出；kind 只影响文本输入的解析方式与坐标来源标记。
func parseOrigin(q url.Values) (OriginSpec, error) {
	var o OriginSpec
	kind, err := geocode.ParseKind(q.Get("kind"))
	if err != nil {
		return o, err
	}
	o.Kind = kind
	o.Preset = strings.TrimSpace(q.Get("preset"))
	o.Text = strings.TrimSpace(q.Get("q"))
	lat, lon := q.Get("lat"), q.Get("lon")
	if lat == "" && lon == "" {
		return o, nil
	}
	if lat == "" {
		return o, errs.InvalidParameter("lat", "lat is required with lon")
	}
	if lon == "" {
		return o, errs.InvalidParameter("lon", "lon is required with lat")
	}
	la, err := parseFloat("lat", lat)
	if err != nil {
		return o, err
	}
	lo, err := parseFloat("lon", lon)
	if err != nil {
		return o, err
	}
	o.Point = &geo.Point{Lat: la, Lon: lo}
	return o, nil
}

// 文档注释：解析排序参数
// 约束：未给出的字段取 base；只改 unit 时把 base 半径换算到新单位；不截断，越界值交给 Validate 拒绝。
func parseParams(q url.Values, base rank.Params) (rank.Params, error) {
	p := base
	if v := q.Get("unit"); v != "" {
		u, ok := geo.ParseUnit(v)
		if !ok {
			return p, errs.InvalidParameter("unit", "must be mi or ft, got %q", v)
		}
		if u != p.Unit {
			p.Radius = u.FromMiles(p.RadiusMiles())
			p.Unit = u
		}
	}
	var err error
	if v := q.Get("alpha"); v != "" {
		if p.Alpha, err = parseFloat("alpha", v); err != nil {
			return p, err
		}
	}
	if v := q.Get("beta"); v != "" {
		if p.Beta, err = parseFloat("beta", v); err != nil {
			return p, err
		}
	}
	if v := q.Get("radius"); v != "" {
		if p.Radius, err = parseFloat("radius", v); err != nil {
			return p, err
		}
	}
	top := q.Get("top_n")
	if top == "" {
		top = q.Get("top")
	}
	if top != "" {
		n, err := strconv.Atoi(top)
		if err != nil {
			return p, errs.InvalidParameter("top_n", "not an integer: %q", top)
		}
		p.TopN = n
	}
	return p, p.Validate()
}

func parseFloat(field, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, errs.InvalidParameter(field, "not a number: %q", v)
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// 文档注释：错误映射
// 约束：invalid_parameter→400，resolution_failed→404，out_of_region→422，service_unavailable→503（超时 504），其余 500。
func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindInvalidParameter:
		return http.StatusBadRequest
	case errs.KindResolutionFailed:
		return http.StatusNotFound
	case errs.KindOutOfRegion:
		return http.StatusUnprocessableEntity
	case errs.KindServiceUnavailable:
		if errs.IsTimeout(err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return 499
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	kind := string(errs.KindOf(err))
	if kind == "" {
		kind = "internal"
	}
	if code >= 500 {
		logger.L().Warn("api_error", "status", code, "kind", kind, "err", err)
	}
	writeJSON(w, code, errorResponse{Error: kind, Field: errs.FieldOf(err), Message: err.Error()})
}
