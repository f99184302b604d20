package spatial

import (
	"math"

	"parking-rank/internal/geo"
)

// 文档注释：geohash 网格索引（base32，精度 6，约 0.61km x 1.2km）
// 约束：按点所在单元分桶；查询时枚举外接框覆盖的全部单元并各向外扩一格，单元过多时退化为全量扫描。
const (
	gridPrecision = 6
	gridBits      = gridPrecision * 5 / 2 // 每轴 15 位
	maxGridCells  = 4096
)

var (
	base32   = []byte("0123456789bcdefghjkmnpqrstuvwxyz")
	cellLat  = 180.0 / float64(int(1)<<gridBits)
	cellLon  = 360.0 / float64(int(1)<<gridBits)
	lastCell = int(1)<<gridBits - 1
)

func encodeGeohash(lat, lon float64, precision int) string {
	latInt := [2]float64{-90, 90}
	lonInt := [2]float64{-180, 180}
	bits := [5]int{16, 8, 4, 2, 1}
	bit, ch := 0, 0
	even := true
	out := make([]byte, 0, precision)
	for len(out) < precision {
		if even {
			mid := (lonInt[0] + lonInt[1]) / 2
			if lon >= mid {
				ch |= bits[bit]
				lonInt[0] = mid
			} else {
				lonInt[1] = mid
			}
		} else {
			mid := (latInt[0] + latInt[1]) / 2
			if lat >= mid {
				ch |= bits[bit]
				latInt[0] = mid
			} else {
				latInt[1] = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			out = append(out, base32[ch])
			bit, ch = 0, 0
		}
	}
	return string(out)
}

type grid struct {
	cells map[string][]Item
	items []Item
}

func newGrid(items []Item) *grid {
	g := &grid{cells: make(map[string][]Item), items: items}
	for _, it := range items {
		k := encodeGeohash(it.Point.Lat, it.Point.Lon, gridPrecision)
		g.cells[k] = append(g.cells[k], it)
	}
	return g
}

func cellIndex(v, origin, size float64) int {
	i := int(math.Floor((v - origin) / size))
	if i < 0 {
		return 0
	}
	if i > lastCell {
		return lastCell
	}
	return i
}

func clampCell(i int) int {
	if i < 0 {
		return 0
	}
	if i > lastCell {
		return lastCell
	}
	return i
}

func (g *grid) Within(center geo.Point, radiusMi float64) []Neighbor {
	box, wrapped := geo.CapBounds(center, radiusMi)
	if wrapped {
		return collect(center, radiusMi, g.items)
	}
	i0 := clampCell(cellIndex(box.South, -90, cellLat) - 1)
	i1 := clampCell(cellIndex(box.North, -90, cellLat) + 1)
	j0 := clampCell(cellIndex(box.West, -180, cellLon) - 1)
	j1 := clampCell(cellIndex(box.East, -180, cellLon) + 1)
	if (i1-i0+1)*(j1-j0+1) > maxGridCells {
		return collect(center, radiusMi, inBox(g.items, box))
	}
	var cands []Item
	for i := i0; i <= i1; i++ {
		lat := -90 + (float64(i)+0.5)*cellLat
		for j := j0; j <= j1; j++ {
			lon := -180 + (float64(j)+0.5)*cellLon
			for _, it := range g.cells[encodeGeohash(lat, lon, gridPrecision)] {
				if inside(box, it.Point) {
					cands = append(cands, it)
				}
			}
		}
	}
	return collect(center, radiusMi, cands)
}

func (g *grid) Nearest(center geo.Point, k int) []Neighbor {
	return nearestByExpansion(g.Within, g.items, center, k)
}

func (g *grid) Len() int   { return len(g.items) }
func (g *grid) Kind() Kind { return KindGeohash }
