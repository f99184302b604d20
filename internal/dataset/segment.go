// 包 dataset：把异构的停车路段记录归一化为带坐标与车位数的 Segment
package dataset

import (
	"math"
	"strconv"
	"strings"

	"parking-rank/internal/geo"
)

// 可用车位估算系数：约 30% 的车位空闲
const availableShare = 0.3

// 原始记录：列名到值；CSV 来源的值为字符串，JSON 来源可能是数字或数组
type Record map[string]any

// 文档注释：停车路段
// 约束：Position 必为有限且合法的坐标；创建后不可变，数据集重载时整体丢弃。
type Segment struct {
	ID          int       `json:"id"`
	Position    geo.Point `json:"position"`
	StreetLabel string    `json:"street"`
	Supply      float64   `json:"supply"`
}

// EstimatedAvailable 每次按 Supply 重新计算，不单独存储
func (s Segment) EstimatedAvailable() float64 { return availableShare * s.Supply }

// 坐标推导策略：按固定顺序尝试，首个成功者生效
type coordStrategy struct {
	name string
	fn   func(Record) (geo.Point, bool)
}

var coordChain = []coordStrategy{
	{name: "center", fn: fromCenter},
	{name: "lat_lon_arrays", fn: fromArrays},
	{name: "shape", fn: fromLineString},
}

// DropReason 为无可用坐标时的统一原因
const DropReason = "no_coordinates"

// 文档注释：归一化单条记录
// 返回：Segment 与是否可用；不可用不是错误，由调用方计数。strategy 为生效的坐标推导方式。
func Normalize(id int, r Record) (seg Segment, strategy string, ok bool) {
	for _, s := range coordChain {
		p, ok := s.fn(r)
		if !ok || !p.Valid() {
			continue
		}
		return Segment{
			ID:          id,
			Position:    p,
			StreetLabel: streetLabel(r),
			Supply:      supply(r),
		}, s.name, true
	}
	return Segment{}, "", false
}

// center 字段："[lat, lon]"
func fromCenter(r Record) (geo.Point, bool) {
	xs, ok := parseList(r["center"])
	if !ok || len(xs) != 2 {
		return geo.Point{}, false
	}
	return geo.Point{Lat: xs[0], Lon: xs[1]}, true
}

// latitude / longitude 为等长数组，取各自均值
func fromArrays(r Record) (geo.Point, bool) {
	lats, ok1 := parseList(r["latitude"])
	lons, ok2 := parseList(r["longitude"])
	if !ok1 || !ok2 || len(lats) == 0 || len(lats) != len(lons) {
		return geo.Point{}, false
	}
	return geo.Point{Lat: mean(lats), Lon: mean(lons)}, true
}

// shape 为 "LINESTRING (lon lat, lon lat, ...)"，取首尾顶点中点
func fromLineString(r Record) (geo.Point, bool) {
	s, ok := r["shape"].(string)
	if !ok {
		return geo.Point{}, false
	}
	s = strings.TrimSpace(s)
	if len(s) < len("LINESTRING") || !strings.EqualFold(s[:len("LINESTRING")], "LINESTRING") {
		return geo.Point{}, false
	}
	body := strings.TrimSpace(s[len("LINESTRING"):])
	body = strings.TrimSuffix(strings.TrimPrefix(body, "("), ")")
	var first, last geo.Point
	n := 0
	for _, pair := range strings.Split(body, ",") {
		f := strings.Fields(pair)
		if len(f) < 2 {
			return geo.Point{}, false
		}
		lon, err1 := strconv.ParseFloat(f[0], 64)
		lat, err2 := strconv.ParseFloat(f[1], 64)
		if err1 != nil || err2 != nil {
			return geo.Point{}, false
		}
		if n == 0 {
			first = geo.Point{Lat: lat, Lon: lon}
		}
		last = geo.Point{Lat: lat, Lon: lon}
		n++
	}
	if n == 0 {
		return geo.Point{}, false
	}
	return geo.Point{Lat: (first.Lat + last.Lat) / 2, Lon: (first.Lon + last.Lon) / 2}, true
}

// 路段名：优先 STREET，其次 ST_NAME + " " + ST_TYPE
func streetLabel(r Record) string {
	if s := strings.TrimSpace(asString(r["STREET"])); s != "" {
		return s
	}
	name := strings.TrimSpace(asString(r["ST_NAME"]))
	typ := strings.TrimSpace(asString(r["ST_TYPE"]))
	return strings.TrimSpace(name + " " + typ)
}

// 车位数：非数值、缺失、负数或非有限值均按 0
func supply(r Record) float64 {
	v, ok := asFloat(r["PRKG_SPLY"])
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// 文档注释：解析列表值
// 约束：接受 JSON 数组或形如 "[a, b]" / "(a, b)" 的字符串；任一元素非数值则整体失败。
func parseList(v any) ([]float64, bool) {
	switch x := v.(type) {
	case []any:
		out := make([]float64, 0, len(x))
		for _, it := range x {
			f, ok := asFloat(it)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	case []float64:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		if len(s) < 2 {
			return nil, false
		}
		o, c := s[0], s[len(s)-1]
		if !(o == '[' && c == ']') && !(o == '(' && c == ')') {
			return nil, false
		}
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if inner == "" {
			return []float64{}, true
		}
		parts := strings.Split(inner, ",")
		out := make([]float64, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	}
	return nil, false
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
