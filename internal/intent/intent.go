// 包 intent：自然语言停车需求解析为部分排序请求
package intent

import (
	"context"
	"math"
	"strings"

	"parking-rank/internal/geo"
	"parking-rank/internal/rank"
)

// 步行偏好
const (
	WalkClose    = "close"
	WalkBalanced = "balanced"
	WalkFar      = "far"
)

// 步行偏好对应的 alpha 预设
var walkingAlpha = map[string]float64{
	WalkClose:    1.5,
	WalkBalanced: 0.8,
	WalkFar:      0.3,
}

// 文档注释：部分排序请求
// 约束：nil / 空值表示未提取到，由调用方用当前默认值补齐；RadiusMi 始终以英里表示，Unit 只决定显示单位。
type Request struct {
	OriginText string     `json:"origin_text,omitempty"`
	Origin     *geo.Point `json:"origin,omitempty"`
	RadiusMi   *float64   `json:"radius_mi,omitempty"`
	Unit       geo.Unit   `json:"unit,omitempty"`
	Alpha      *float64   `json:"alpha,omitempty"`
	Beta       *float64   `json:"beta,omitempty"`
	Walking    string     `json:"walking_preference,omitempty"`
	TopN       *int       `json:"top_n,omitempty"`
}

// Empty 没有任何字段被提取
func (r Request) Empty() bool {
	return r.OriginText == "" && r.Origin == nil && r.RadiusMi == nil && r.Unit == "" &&
		r.Alpha == nil && r.Beta == nil && r.Walking == "" && r.TopN == nil
}

// HasOrigin 是否提取到起点线索
func (r Request) HasOrigin() bool { return r.Origin != nil || r.OriginText != "" }

// 文档注释：以 base 为默认值合并提取结果
// 约束：提取出的数值一律按界面范围截断；只改单位时把 base 半径换算到新单位，不截断。
func (r Request) Apply(base rank.Params) rank.Params {
	p := base
	if r.Unit != "" && r.Unit != p.Unit {
		p.Radius = r.Unit.FromMiles(p.RadiusMiles())
		p.Unit = r.Unit
	}
	if r.RadiusMi != nil {
		p.Radius = rank.ClampRadius(p.Unit.FromMiles(*r.RadiusMi), p.Unit)
	}
	if r.Alpha != nil {
		p.Alpha = rank.ClampAlpha(*r.Alpha)
	}
	if r.Beta != nil {
		p.Beta = rank.ClampBeta(*r.Beta)
	}
	if r.TopN != nil {
		p.TopN = rank.ClampTopN(*r.TopN)
	}
	return p
}

// 文档注释：文本解析后端
// 约束：Parse 对无法理解的文本返回空 Request 与 nil；后端不可达时返回 ServiceUnavailable 类错误。
type Parser interface {
	Name() string
	Parse(ctx context.Context, text string) (Request, error)
}

func finitePtr(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

func normalizeWalking(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "close", "near", "short":
		return WalkClose
	case "balanced", "medium", "normal":
		return WalkBalanced
	case "far", "long":
		return WalkFar
	}
	return ""
}
