// 包 rank：打分函数、排序参数与排序引擎
package rank

import (
	"math"

	"parking-rank/internal/errs"
	"parking-rank/internal/geo"
)

// 文档注释：排序参数
// 约束：Radius 以 Unit 表示；进入计算前统一换算为英里，Unit 不参与打分。
type Params struct {
	Alpha  float64  `json:"alpha"`
	Beta   float64  `json:"beta"`
	Radius float64  `json:"radius"`
	Unit   geo.Unit `json:"unit"`
	TopN   int      `json:"top_n"`
}

// DefaultParams 与界面初始值一致
func DefaultParams() Params {
	return Params{Alpha: 0.8, Beta: 1.6, Radius: 0.5, Unit: geo.Miles, TopN: 5}
}

// RadiusMiles 半径换算为英里
func (p Params) RadiusMiles() float64 { return p.Unit.ToMiles(p.Radius) }

// 文档注释：参数校验
// 约束：alpha<0、beta<=0、radius<=0、top_n<=0、非有限值与未知单位一律拒绝，错误中带字段名；不做截断。
func (p Params) Validate() error {
	if !finite(p.Alpha) || p.Alpha < 0 {
		return errs.InvalidParameter("alpha", "must be a finite number >= 0, got %v", p.Alpha)
	}
	if !finite(p.Beta) || p.Beta <= 0 {
		return errs.InvalidParameter("beta", "must be a finite number > 0, got %v", p.Beta)
	}
	if !finite(p.Radius) || p.Radius <= 0 {
		return errs.InvalidParameter("radius", "must be a finite number > 0, got %v", p.Radius)
	}
	if p.Unit != geo.Miles && p.Unit != geo.Feet {
		return errs.InvalidParameter("unit", "must be mi or ft, got %q", p.Unit)
	}
	if p.TopN <= 0 {
		return errs.InvalidParameter("top_n", "must be > 0, got %d", p.TopN)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// 界面滑块范围；仅用于截断外部服务给出的不可信参数
const (
	AlphaMin       = 0.2
	AlphaMax       = 3.0
	BetaMin        = 1.0
	BetaMax        = 3.0
	RadiusMinMiles = 0.1
	RadiusMaxMiles = 3.0
	RadiusMinFeet  = 300.0
	RadiusMaxFeet  = 5000.0
	TopNMin        = 1
	TopNMax        = 10
)

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

func ClampAlpha(v float64) float64 { return clamp(v, AlphaMin, AlphaMax) }

func ClampBeta(v float64) float64 { return clamp(v, BetaMin, BetaMax) }

// ClampRadius 按单位对应的范围截断
func ClampRadius(v float64, u geo.Unit) float64 {
	if u == geo.Feet {
		return clamp(v, RadiusMinFeet, RadiusMaxFeet)
	}
	return clamp(v, RadiusMinMiles, RadiusMaxMiles)
}

func ClampTopN(n int) int {
	if n < TopNMin {
		return TopNMin
	}
	if n > TopNMax {
		return TopNMax
	}
	return n
}
