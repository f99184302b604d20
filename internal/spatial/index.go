// 包 spatial：路段位置的空间索引；三种实现对同一输入给出逐条一致的结果
package spatial

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"parking-rank/internal/geo"
)

// 被索引的点；ID 与 dataset.Segment.ID 一致
type Item struct {
	ID    int
	Point geo.Point
}

// 查询结果：Distance 为英里
type Neighbor struct {
	ID       int
	Point    geo.Point
	Distance float64
}

// 文档注释：空间索引
// 约束：构建后只读，可并发查询；Within 返回全部距离 <= radiusMi 的点，按距离升序、ID 升序排列。
// Nearest 返回最近的 k 个点（同样的排序规则），k 大于总数时返回全部。
type Index interface {
	Within(center geo.Point, radiusMi float64) []Neighbor
	Nearest(center geo.Point, k int) []Neighbor
	Len() int
	Kind() Kind
}

type Kind string

const (
	KindKDTree  Kind = "kdtree"
	KindGeohash Kind = "geohash"
	KindLinear  Kind = "linear"
)

// ParseKind 空串按 kdtree
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindKDTree:
		return KindKDTree, nil
	case KindGeohash:
		return KindGeohash, nil
	case KindLinear:
		return KindLinear, nil
	}
	return "", fmt.Errorf("unknown index kind %q", s)
}

// New 复制 items 后构建索引，调用方可继续修改原切片
func New(kind Kind, items []Item) (Index, error) {
	cp := make([]Item, len(items))
	copy(cp, items)
	switch kind {
	case KindKDTree, "":
		return newKDTree(cp), nil
	case KindGeohash:
		return newGrid(cp), nil
	case KindLinear:
		return &linear{items: cp}, nil
	}
	return nil, fmt.Errorf("unknown index kind %q", kind)
}

// 起始搜索半径（英里）；Nearest 由此翻倍扩张
const nearestStartMi = 0.1

// 半周长：超过此半径的球冠覆盖整个球面
var fullSphereMi = math.Pi * geo.EarthRadiusMiles

// 文档注释：精确过滤并排序候选点
// 约束：候选集必须是结果的超集；距离统一由 geo.HaversineMiles 计算。
func collect(center geo.Point, radiusMi float64, cands []Item) []Neighbor {
	out := make([]Neighbor, 0, len(cands))
	for _, it := range cands {
		d := geo.HaversineMiles(center, it.Point)
		if d <= radiusMi {
			out = append(out, Neighbor{ID: it.ID, Point: it.Point, Distance: d})
		}
	}
	sortNeighbors(out)
	return out
}

func sortNeighbors(ns []Neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Distance != ns[j].Distance {
			return ns[i].Distance < ns[j].Distance
		}
		return ns[i].ID < ns[j].ID
	})
}

// 文档注释：以逐步翻倍的半径求最近 k 个
// 约束：半径 r 内已有 >= k 个点时，其余点距离都 > r，故前 k 个即为全局最近；超过半周长后退化为全量扫描。
func nearestByExpansion(within func(geo.Point, float64) []Neighbor, all []Item, center geo.Point, k int) []Neighbor {
	if k <= 0 || len(all) == 0 {
		return []Neighbor{}
	}
	if k > len(all) {
		k = len(all)
	}
	for r := nearestStartMi; r < fullSphereMi; r *= 2 {
		if res := within(center, r); len(res) >= k {
			return res[:k]
		}
	}
	return collect(center, math.Inf(1), all)[:k]
}

// 包围盒内的候选点（未跨 ±180 的框）
func inBox(items []Item, box geo.BBox) []Item {
	out := make([]Item, 0)
	for _, it := range items {
		if inside(box, it.Point) {
			out = append(out, it)
		}
	}
	return out
}

func inside(b geo.BBox, p geo.Point) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lon >= b.West && p.Lon <= b.East
}
