package spatial

import "parking-rank/internal/geo"

// 线性扫描：作为基准实现，也用于小数据集
type linear struct {
	items []Item
}

func (l *linear) Within(center geo.Point, radiusMi float64) []Neighbor {
	return collect(center, radiusMi, l.items)
}

func (l *linear) Nearest(center geo.Point, k int) []Neighbor {
	return nearestByExpansion(l.Within, l.items, center, k)
}

func (l *linear) Len() int   { return len(l.items) }
func (l *linear) Kind() Kind { return KindLinear }
