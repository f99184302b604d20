package api

import (
	"time"

	"parking-rank/internal/geo"
	"parking-rank/internal/geocode"
	"parking-rank/internal/intent"
	"parking-rank/internal/rank"
)

// 文档注释：排序结果条目（对外）
// 约束：distance 为显示单位下的数值，distance_mi 始终为英里；前端只渲染，不自行计算距离或得分。
type rankedItem struct {
	rank.Result
	DistanceDisplay float64 `json:"distance"`
	DistanceText    string  `json:"distance_text"`
}

// 文档注释：排序返回结构
// 约束：results 为空时输出 []，不输出 null。
type rankResponse struct {
	Origin  geocode.Origin  `json:"origin"`
	Params  rank.Params     `json:"params"`
	Unit    geo.Unit        `json:"unit"`
	Count   int             `json:"count"`
	Results []rankedItem    `json:"results"`
	Intent  *intent.Request `json:"intent,omitempty"`
}

type healthResponse struct {
	Status    string                   `json:"status"`
	Segments  int                      `json:"segments"`
	Dropped   int                      `json:"dropped"`
	Index     string                   `json:"index"`
	Source    string                   `json:"source"`
	LoadedAt  time.Time                `json:"loaded_at"`
	Providers []geocode.ProviderStatus `json:"providers"`
	Intent    string                   `json:"intent_backend,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func toItems(rs []rank.Result, unit geo.Unit) []rankedItem {
	out := make([]rankedItem, len(rs))
	for i, r := range rs {
		out[i] = rankedItem{Result: r, DistanceDisplay: unit.FromMiles(r.Distance), DistanceText: unit.Format(r.Distance)}
	}
	return out
}
