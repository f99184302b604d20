package rank

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"parking-rank/internal/dataset"
	"parking-rank/internal/errs"
	"parking-rank/internal/geo"
	"parking-rank/internal/logger"
	"parking-rank/internal/metrics"
	"parking-rank/internal/spatial"
)

// 单条排序结果；Distance 为英里，Rank 从 1 开始
type Result struct {
	Rank               int       `json:"rank"`
	SegmentID          int       `json:"segment_id"`
	Street             string    `json:"street"`
	Position           geo.Point `json:"position"`
	Supply             float64   `json:"supply"`
	EstimatedAvailable float64   `json:"estimated_available"`
	Distance           float64   `json:"distance_mi"`
	Score              float64   `json:"score"`
}

// 文档注释：数据集快照（路段 + 索引）
// 约束：构建完成后只读；重载时整体替换，不在原快照上修改。
type Snapshot struct {
	index    spatial.Index
	segments map[int]dataset.Segment
	Report   dataset.LoadReport
}

// NewSnapshot 按 kind 为 segs 建立索引
func NewSnapshot(segs []dataset.Segment, kind spatial.Kind, rep dataset.LoadReport) (*Snapshot, error) {
	items := make([]spatial.Item, len(segs))
	byID := make(map[int]dataset.Segment, len(segs))
	for i, s := range segs {
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate segment id %d", s.ID)
		}
		byID[s.ID] = s
		items[i] = spatial.Item{ID: s.ID, Point: s.Position}
	}
	idx, err := spatial.New(kind, items)
	if err != nil {
		return nil, err
	}
	return &Snapshot{index: idx, segments: byID, Report: rep}, nil
}

func (s *Snapshot) Len() int { return s.index.Len() }

func (s *Snapshot) IndexKind() spatial.Kind { return s.index.Kind() }

// Segment 按 ID 取路段
func (s *Snapshot) Segment(id int) (dataset.Segment, bool) {
	seg, ok := s.segments[id]
	return seg, ok
}

// 文档注释：排序引擎
// 背景：通过 atomic.Pointer 无锁切换快照；读路径拿到的总是某个完整快照，不会看到构建一半的索引。
// 约束：region 为起点的合法范围；起点不在范围内时直接返回 out_of_region，不做截断。
type Engine struct {
	snap   atomic.Pointer[Snapshot]
	region geo.BBox
}

// NewEngine 初始为空快照
func NewEngine(region geo.BBox) *Engine {
	e := &Engine{region: region}
	empty, _ := NewSnapshot(nil, spatial.KindLinear, dataset.LoadReport{})
	e.snap.Store(empty)
	return e
}

// Swap 替换当前快照，返回旧快照
func (e *Engine) Swap(s *Snapshot) *Snapshot {
	old := e.snap.Swap(s)
	metrics.DatasetRowsLoaded.Set(float64(s.Len()))
	logger.L().Info("index_swapped", "kind", s.IndexKind(), "segments", s.Len(), "dropped", s.Report.Dropped)
	return old
}

// Snapshot 当前快照
func (e *Engine) Snapshot() *Snapshot { return e.snap.Load() }

func (e *Engine) Region() geo.BBox { return e.region }

// 文档注释：排序
// 流程：参数校验 → 区域校验 → 半径查询 → 打分 → 按得分降序、距离升序、ID 升序排序 → 截断 top_n → 赋 1 起始名次。
// 约束：无候选时返回空切片而非错误；ctx 在发布结果前被取消则返回 ctx 错误，不返回部分结果。
func (e *Engine) Rank(ctx context.Context, origin geo.Point, p Params) ([]Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !e.region.Contains(origin) {
		return nil, errs.OutOfRegion("origin %s outside %v", origin, e.region)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	metrics.RankRequestsTotal.Inc()
	snap := e.snap.Load()
	out := scoreAll(snap, snap.index.Within(origin, p.RadiusMiles()), p)
	sortResults(out)
	if len(out) > p.TopN {
		out = out[:p.TopN]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		metrics.RankEmptyTotal.Inc()
	}
	metrics.RankDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	logger.L().Debug("rank_done", "origin", origin.String(), "radius_mi", p.RadiusMiles(), "results", len(out))
	return out, nil
}

// 文档注释：最近路段
// 约束：按距离升序、ID 升序；Score 按 p 计算（p 仅用 alpha/beta），Rank 为距离名次。
func (e *Engine) Nearest(ctx context.Context, origin geo.Point, k int, p Params) ([]Result, error) {
	if k <= 0 {
		return nil, errs.InvalidParameter("k", "must be > 0, got %d", k)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !e.region.Contains(origin) {
		return nil, errs.OutOfRegion("origin %s outside %v", origin, e.region)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := e.snap.Load()
	out := scoreAll(snap, snap.index.Nearest(origin, k), p)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func scoreAll(snap *Snapshot, ns []spatial.Neighbor, p Params) []Result {
	out := make([]Result, 0, len(ns))
	for _, n := range ns {
		seg := snap.segments[n.ID]
		out = append(out, Result{
			SegmentID:          seg.ID,
			Street:             seg.StreetLabel,
			Position:           seg.Position,
			Supply:             seg.Supply,
			EstimatedAvailable: seg.EstimatedAvailable(),
			Distance:           n.Distance,
			Score:              Score(seg.Supply, n.Distance, p.Alpha, p.Beta),
		})
	}
	return out
}

func sortResults(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Score != rs[j].Score {
			return rs[i].Score > rs[j].Score
		}
		if rs[i].Distance != rs[j].Distance {
			return rs[i].Distance < rs[j].Distance
		}
		return rs[i].SegmentID < rs[j].SegmentID
	})
}
