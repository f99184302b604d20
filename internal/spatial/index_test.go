package spatial

import (
	"math"
	"math/rand"
	"testing"

	"parking-rank/internal/geo"
)

var allKinds = []Kind{KindKDTree, KindGeohash, KindLinear}

// sfItems scatters points over the city plus a few exact duplicates so
// ties on distance must be broken by id.
func sfItems(n int, seed int64) []Item {
	rng := rand.New(rand.NewSource(seed))
	items := make([]Item, 0, n+4)
	for i := 0; i < n; i++ {
		items = append(items, Item{ID: i, Point: geo.Point{
			Lat: 37.708 + rng.Float64()*(37.832-37.708),
			Lon: -122.514 + rng.Float64()*(-122.357+122.514),
		}})
	}
	dup := items[0].Point
	for i := 0; i < 4; i++ {
		items = append(items, Item{ID: n + i, Point: dup})
	}
	return items
}

func bruteWithin(items []Item, c geo.Point, r float64) []Neighbor {
	return collect(c, r, items)
}

func sameNeighbors(t *testing.T, kind Kind, got, want []Neighbor) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len = %d, want %d", kind, len(got), len(want))
	}
	for i := range got {
		if got[i].ID != want[i].ID || got[i].Distance != want[i].Distance {
			t.Fatalf("%s: [%d] = %+v, want %+v", kind, i, got[i], want[i])
		}
	}
}

func TestWithinMatchesBruteForce(t *testing.T) {
	t.Parallel()

	items := sfItems(2000, 1)
	centers := []geo.Point{
		{Lat: 37.779190, Lon: -122.419140},
		{Lat: 37.808378, Lon: -122.409837},
		{Lat: 37.708, Lon: -122.514},
		items[0].Point,
	}
	radii := []float64{0, 0.05, 0.25, 0.5, 1, 3, 20}
	for _, kind := range allKinds {
		idx, err := New(kind, items)
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		if idx.Len() != len(items) || idx.Kind() != kind {
			t.Fatalf("%s: Len = %d Kind = %s", kind, idx.Len(), idx.Kind())
		}
		for _, c := range centers {
			for _, r := range radii {
				sameNeighbors(t, kind, idx.Within(c, r), bruteWithin(items, c, r))
			}
		}
	}
}

// TestWithinBoundaryInclusive places a point at exactly the query radius
// measured by the shared distance function.
func TestWithinBoundaryInclusive(t *testing.T) {
	t.Parallel()

	c := geo.Point{Lat: 37.78, Lon: -122.42}
	p := geo.Point{Lat: 37.79, Lon: -122.41}
	r := geo.HaversineMiles(c, p)
	items := []Item{{ID: 1, Point: p}, {ID: 2, Point: geo.Point{Lat: 37.80, Lon: -122.40}}}
	for _, kind := range allKinds {
		idx, _ := New(kind, items)
		got := idx.Within(c, r)
		if len(got) != 1 || got[0].ID != 1 {
			t.Fatalf("%s: got %+v, want only id 1", kind, got)
		}
	}
}

func TestNearestMatchesBruteForce(t *testing.T) {
	t.Parallel()

	items := sfItems(500, 2)
	c := geo.Point{Lat: 37.7694, Lon: -122.4862}
	all := bruteWithin(items, c, math.Inf(1))
	for _, kind := range allKinds {
		idx, _ := New(kind, items)
		for _, k := range []int{1, 5, 37, len(items), len(items) + 10} {
			want := all
			if k < len(all) {
				want = all[:k]
			}
			sameNeighbors(t, kind, idx.Nearest(c, k), want)
		}
		if got := idx.Nearest(c, 0); len(got) != 0 {
			t.Fatalf("%s: k=0 returned %d", kind, len(got))
		}
	}
}

// TestNearestFarAway queries from the other side of the globe so the
// radius expansion must reach the full sphere.
func TestNearestFarAway(t *testing.T) {
	t.Parallel()

	items := sfItems(50, 3)
	c := geo.Point{Lat: -37.78, Lon: 57.58}
	want := bruteWithin(items, c, math.Inf(1))[:3]
	for _, kind := range allKinds {
		idx, _ := New(kind, items)
		sameNeighbors(t, kind, idx.Nearest(c, 3), want)
	}
}

func TestEmptyIndex(t *testing.T) {
	t.Parallel()

	for _, kind := range allKinds {
		idx, _ := New(kind, nil)
		c := geo.Point{Lat: 37.78, Lon: -122.42}
		if got := idx.Within(c, 5); len(got) != 0 {
			t.Fatalf("%s: Within = %v", kind, got)
		}
		if got := idx.Nearest(c, 3); len(got) != 0 {
			t.Fatalf("%s: Nearest = %v", kind, got)
		}
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Kind{"": KindKDTree, "KDTree": KindKDTree, " geohash ": KindGeohash, "linear": KindLinear} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("rtree"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := New("rtree", nil); err == nil {
		t.Fatal("expected error from New for unknown kind")
	}
}

func TestGeohashKnownValue(t *testing.T) {
	t.Parallel()

	// 57.64911,10.40744 is the reference example for "u4pruy".
	if got := encodeGeohash(57.64911, 10.40744, 6); got != "u4pruy" {
		t.Fatalf("encodeGeohash = %q", got)
	}
}
