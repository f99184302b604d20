package spatial

import "parking-rank/internal/geo"

// 文档注释：KD-Tree（二维经纬）
// 约束：经度/纬度交替分割，中位数建树；范围查询以球冠外接框剪枝，边界两侧都包含，最终距离由 collect 精确判定。
type kdNode struct {
	it Item
	ax int // 0:lon,1:lat
	l  *kdNode
	r  *kdNode
}

type kdTree struct {
	root  *kdNode
	items []Item
}

func newKDTree(items []Item) *kdTree {
	work := make([]Item, len(items))
	copy(work, items)
	return &kdTree{root: buildKD(work, 0), items: items}
}

func buildKD(a []Item, depth int) *kdNode {
	if len(a) == 0 {
		return nil
	}
	ax := depth % 2
	mid := len(a) / 2
	selectNth(a, mid, ax)
	node := &kdNode{it: a[mid], ax: ax}
	node.l = buildKD(a[:mid], depth+1)
	node.r = buildKD(a[mid+1:], depth+1)
	return node
}

// 原地 nth 元素选择；完成后 a[:n] <= a[n] <= a[n+1:]（按轴）
func selectNth(a []Item, n int, ax int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi, (lo+hi)/2, ax)
		if p == n {
			return
		}
		if n < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func partition(a []Item, lo, hi, pivot, ax int) int {
	pv := a[pivot]
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if axisVal(a[j].Point, ax) < axisVal(pv.Point, ax) {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

func axisVal(p geo.Point, ax int) float64 {
	if ax == 0 {
		return p.Lon
	}
	return p.Lat
}

func boxLo(b geo.BBox, ax int) float64 {
	if ax == 0 {
		return b.West
	}
	return b.South
}

func boxHi(b geo.BBox, ax int) float64 {
	if ax == 0 {
		return b.East
	}
	return b.North
}

func (t *kdTree) Within(center geo.Point, radiusMi float64) []Neighbor {
	box, wrapped := geo.CapBounds(center, radiusMi)
	if wrapped {
		return collect(center, radiusMi, t.items)
	}
	var cands []Item
	var walk func(n *kdNode)
	walk = func(n *kdNode) {
		if n == nil {
			return
		}
		if inside(box, n.it.Point) {
			cands = append(cands, n.it)
		}
		key := axisVal(n.it.Point, n.ax)
		if boxLo(box, n.ax) <= key {
			walk(n.l)
		}
		if boxHi(box, n.ax) >= key {
			walk(n.r)
		}
	}
	walk(t.root)
	return collect(center, radiusMi, cands)
}

func (t *kdTree) Nearest(center geo.Point, k int) []Neighbor {
	return nearestByExpansion(t.Within, t.items, center, k)
}

func (t *kdTree) Len() int   { return len(t.items) }
func (t *kdTree) Kind() Kind { return KindKDTree }
