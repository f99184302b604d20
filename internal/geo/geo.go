// 包 geo：坐标、包围盒与距离单位的公共定义；距离内部统一以英里计算
package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/s2"
)

const (
	EarthRadiusMiles = 3958.7613
	FeetPerMile      = 5280.0
)

// 点坐标（WGS84，十进制度）
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) String() string { return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lon) }

// Valid 判断坐标为有限值且落在经纬度合法范围内
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// 文档注释：球面距离（Haversine），返回英里
// 约束：所有索引实现与排序都必须走这一个函数，保证同一输入得到完全一致的距离值。
func HaversineMiles(a, b Point) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * EarthRadiusMiles
}

// 包围盒：西、南、东、北（与 Nominatim viewbox 顺序一致）
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Contains 边界上的点视为在框内
func (b BBox) Contains(p Point) bool {
	if !p.Valid() {
		return false
	}
	return p.Lat >= b.South && p.Lat <= b.North && p.Lon >= b.West && p.Lon <= b.East
}

// 文档注释：以 p 为中心、半径 radiusMi 的球冠外接经纬度框
// 约束：跨极点时经度取全范围；返回的框可能越过 ±180，调用方需自行判断 wrapped。
func CapBounds(p Point, radiusMi float64) (box BBox, wrapped bool) {
	ang := radiusMi / EarthRadiusMiles
	latR := p.Lat * math.Pi / 180
	minLat := latR - ang
	maxLat := latR + ang
	var minLon, maxLon float64
	if minLat > -math.Pi/2 && maxLat < math.Pi/2 {
		dLon := math.Asin(math.Min(1, math.Sin(ang)/math.Cos(latR)))
		lonR := p.Lon * math.Pi / 180
		minLon = lonR - dLon
		maxLon = lonR + dLon
	} else {
		minLat = math.Max(minLat, -math.Pi/2)
		maxLat = math.Min(maxLat, math.Pi/2)
		minLon = -math.Pi
		maxLon = math.Pi
	}
	const pad = 1e-9
	box = BBox{
		West:  minLon*180/math.Pi - pad,
		South: minLat*180/math.Pi - pad,
		East:  maxLon*180/math.Pi + pad,
		North: maxLat*180/math.Pi + pad,
	}
	wrapped = box.West < -180 || box.East > 180
	return box, wrapped
}

// 距离显示单位；计算始终使用英里
type Unit string

const (
	Miles Unit = "mi"
	Feet  Unit = "ft"
)

// ParseUnit 接受 mi/mile/miles/ft/foot/feet（大小写不敏感）
func ParseUnit(s string) (Unit, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mi", "mile", "miles":
		return Miles, true
	case "ft", "foot", "feet":
		return Feet, true
	}
	return "", false
}

// ToMiles 将显示单位下的数值换算为英里
func (u Unit) ToMiles(v float64) float64 {
	if u == Feet {
		return v / FeetPerMile
	}
	return v
}

// FromMiles 将英里换算为显示单位
func (u Unit) FromMiles(mi float64) float64 {
	if u == Feet {
		return mi * FeetPerMile
	}
	return mi
}

// Format 英尺取整，英里保留两位
func (u Unit) Format(mi float64) string {
	if u == Feet {
		return fmt.Sprintf("%.0f ft", u.FromMiles(mi))
	}
	return fmt.Sprintf("%.2f mi", mi)
}
