package rank

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"parking-rank/internal/dataset"
	"parking-rank/internal/errs"
	"parking-rank/internal/geo"
	"parking-rank/internal/spatial"
)

var (
	sfBox    = geo.BBox{West: -122.514, South: 37.708, East: -122.357, North: 37.832}
	cityHall = geo.Point{Lat: 37.779190, Lon: -122.419140}
)

// milesNorth moves p north by roughly mi miles.
func milesNorth(p geo.Point, mi float64) geo.Point {
	return geo.Point{Lat: p.Lat + mi/geo.EarthRadiusMiles*180/math.Pi, Lon: p.Lon}
}

func engineWith(t *testing.T, kind spatial.Kind, segs []dataset.Segment) *Engine {
	t.Helper()
	snap, err := NewSnapshot(segs, kind, dataset.LoadReport{})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	e := NewEngine(sfBox)
	e.Swap(snap)
	return e
}

func TestScore(t *testing.T) {
	t.Parallel()

	if got := Score(10, 0.1, 1, 1); math.Abs(got-10/1.1) > 1e-12 {
		t.Fatalf("Score A = %v", got)
	}
	if got := Score(100, 2, 1, 1); math.Abs(got-100.0/3) > 1e-12 {
		t.Fatalf("Score B = %v", got)
	}
	for _, d := range []float64{0, 0.3, 7, 1e6} {
		for _, b := range []float64{0.5, 1, 1.6, 3} {
			if got := Score(42.5, d, 0, b); got != 42.5 {
				t.Fatalf("alpha=0 Score(d=%v, b=%v) = %v", d, b, got)
			}
		}
	}
}

func TestScoreNonIncreasingInAlpha(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 1000; i++ {
		s := rng.Float64() * 50
		d := 0.001 + rng.Float64()*3
		b := 0.1 + rng.Float64()*3
		a1 := rng.Float64() * 3
		a2 := a1 + rng.Float64()*3
		if Score(s, d, a2, b) > Score(s, d, a1, b) {
			t.Fatalf("score increased with alpha: s=%v d=%v b=%v a1=%v a2=%v", s, d, b, a1, a2)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mut   func(*Params)
		field string
	}{
		{"defaults", func(*Params) {}, ""},
		{"alpha zero ok", func(p *Params) { p.Alpha = 0 }, ""},
		{"alpha negative", func(p *Params) { p.Alpha = -0.1 }, "alpha"},
		{"alpha nan", func(p *Params) { p.Alpha = math.NaN() }, "alpha"},
		{"beta zero", func(p *Params) { p.Beta = 0 }, "beta"},
		{"radius zero", func(p *Params) { p.Radius = 0 }, "radius"},
		{"radius inf", func(p *Params) { p.Radius = math.Inf(1) }, "radius"},
		{"top_n zero", func(p *Params) { p.TopN = 0 }, "top_n"},
		{"unit unknown", func(p *Params) { p.Unit = "km" }, "unit"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := DefaultParams()
			tc.mut(&p)
			err := p.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, errs.ErrInvalidParameter) || errs.FieldOf(err) != tc.field {
				t.Fatalf("err = %v, want invalid_parameter on %s", err, tc.field)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	if ClampAlpha(9) != AlphaMax || ClampAlpha(0) != AlphaMin || ClampAlpha(1.1) != 1.1 {
		t.Fatal("ClampAlpha")
	}
	if ClampBeta(0.2) != BetaMin || ClampBeta(4) != BetaMax {
		t.Fatal("ClampBeta")
	}
	if ClampRadius(10, geo.Miles) != RadiusMaxMiles || ClampRadius(50, geo.Feet) != RadiusMinFeet {
		t.Fatal("ClampRadius")
	}
	if ClampTopN(0) != TopNMin || ClampTopN(50) != TopNMax || ClampTopN(3) != 3 {
		t.Fatal("ClampTopN")
	}
}

// TestRankSupplyBeatsProximity is the two segment example: a large lot two
// miles away outranks a small one next door when alpha=beta=1.
func TestRankSupplyBeatsProximity(t *testing.T) {
	t.Parallel()

	segs := []dataset.Segment{
		{ID: 0, Position: milesNorth(cityHall, 0.1), StreetLabel: "A", Supply: 10},
		{ID: 1, Position: milesNorth(cityHall, 2), StreetLabel: "B", Supply: 100},
	}
	e := engineWith(t, spatial.KindKDTree, segs)
	p := Params{Alpha: 1, Beta: 1, Radius: 3, Unit: geo.Miles, TopN: 5}
	got, err := e.Rank(context.Background(), cityHall, p)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 2 || got[0].Street != "B" || got[1].Street != "A" {
		t.Fatalf("ranking = %+v", got)
	}
	if got[0].Rank != 1 || got[1].Rank != 2 {
		t.Fatalf("ranks = %d,%d", got[0].Rank, got[1].Rank)
	}
	if math.Abs(got[0].Score-33.33) > 0.05 || math.Abs(got[1].Score-9.09) > 0.05 {
		t.Fatalf("scores = %v, %v", got[0].Score, got[1].Score)
	}
	if math.Abs(got[0].EstimatedAvailable-30) > 1e-9 {
		t.Fatalf("estimated available = %v", got[0].EstimatedAvailable)
	}
}

func randomSegments(n int) []dataset.Segment {
	rng := rand.New(rand.NewSource(11))
	segs := make([]dataset.Segment, n)
	for i := range segs {
		segs[i] = dataset.Segment{
			ID: i * 3,
			Position: geo.Point{
				Lat: 37.76 + rng.Float64()*0.04,
				Lon: -122.44 + rng.Float64()*0.04,
			},
			Supply: float64(rng.Intn(6)),
		}
	}
	return segs
}

// TestRankDeterministicAcrossIndexes checks repeated calls and every index
// kind produce identical output, including ties on zero supply.
func TestRankDeterministicAcrossIndexes(t *testing.T) {
	t.Parallel()

	segs := randomSegments(800)
	p := Params{Alpha: 0.8, Beta: 1.6, Radius: 2000, Unit: geo.Feet, TopN: 50}
	var want []Result
	for _, kind := range []spatial.Kind{spatial.KindLinear, spatial.KindKDTree, spatial.KindGeohash} {
		e := engineWith(t, kind, segs)
		for i := 0; i < 2; i++ {
			got, err := e.Rank(context.Background(), cityHall, p)
			if err != nil {
				t.Fatalf("%s: %v", kind, err)
			}
			if want == nil {
				want = got
				continue
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("%s: ranking differs", kind)
			}
		}
	}
	if len(want) == 0 {
		t.Fatal("expected candidates in radius")
	}
}

func TestRankEdgeCases(t *testing.T) {
	t.Parallel()

	segs := []dataset.Segment{
		{ID: 4, Position: milesNorth(cityHall, 0.2), Supply: 3},
		{ID: 2, Position: milesNorth(cityHall, 0.2), Supply: 3},
		{ID: 9, Position: milesNorth(cityHall, 1.5), Supply: 8},
	}
	e := engineWith(t, spatial.KindGeohash, segs)
	ctx := context.Background()

	got, err := e.Rank(ctx, cityHall, Params{Alpha: 1, Beta: 1, Radius: 100, Unit: geo.Feet, TopN: 5})
	if err != nil || len(got) != 0 {
		t.Fatalf("empty radius: got %v, %v", got, err)
	}
	if got == nil {
		t.Fatal("empty ranking must be a non-nil slice")
	}

	got, err = e.Rank(ctx, cityHall, Params{Alpha: 1, Beta: 1, Radius: 1, Unit: geo.Miles, TopN: 10})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 2 || got[0].SegmentID != 2 || got[1].SegmentID != 4 {
		t.Fatalf("tie break by id failed: %+v", got)
	}

	got, _ = e.Rank(ctx, cityHall, Params{Alpha: 0, Beta: 1, Radius: 2, Unit: geo.Miles, TopN: 10})
	if len(got) != 3 || got[0].SegmentID != 9 || got[0].Score != 8 {
		t.Fatalf("alpha zero ranking: %+v", got)
	}

	outside := geo.Point{Lat: sfBox.North + 1e-6, Lon: cityHall.Lon}
	if _, err := e.Rank(ctx, outside, DefaultParams()); !errors.Is(err, errs.ErrOutOfRegion) {
		t.Fatalf("outside origin: %v", err)
	}
	edge := geo.Point{Lat: sfBox.North, Lon: sfBox.West}
	if _, err := e.Rank(ctx, edge, DefaultParams()); err != nil {
		t.Fatalf("boundary origin rejected: %v", err)
	}

	bad := DefaultParams()
	bad.Beta = 0
	if _, err := e.Rank(ctx, cityHall, bad); errs.FieldOf(err) != "beta" {
		t.Fatalf("beta=0: %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.Rank(cctx, cityHall, DefaultParams()); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled: %v", err)
	}
}

func TestNearest(t *testing.T) {
	t.Parallel()

	segs := []dataset.Segment{
		{ID: 0, Position: milesNorth(cityHall, 0.5), StreetLabel: "FAR"},
		{ID: 1, Position: milesNorth(cityHall, 0.05), StreetLabel: "NEAR"},
	}
	e := engineWith(t, spatial.KindKDTree, segs)
	got, err := e.Nearest(context.Background(), cityHall, 1, DefaultParams())
	if err != nil || len(got) != 1 || got[0].Street != "NEAR" || got[0].Rank != 1 {
		t.Fatalf("Nearest = %+v, %v", got, err)
	}
	if _, err := e.Nearest(context.Background(), cityHall, 0, DefaultParams()); errs.FieldOf(err) != "k" {
		t.Fatalf("k=0: %v", err)
	}
}

func TestSwapKeepsOldSnapshotIntact(t *testing.T) {
	t.Parallel()

	e := engineWith(t, spatial.KindLinear, randomSegments(10))
	old := e.Snapshot()
	next, _ := NewSnapshot(randomSegments(3), spatial.KindKDTree, dataset.LoadReport{})
	if prev := e.Swap(next); prev != old {
		t.Fatal("Swap returned unexpected snapshot")
	}
	if old.Len() != 10 || e.Snapshot().Len() != 3 {
		t.Fatalf("lens = %d, %d", old.Len(), e.Snapshot().Len())
	}
	if _, err := NewSnapshot([]dataset.Segment{{ID: 1}, {ID: 1}}, spatial.KindLinear, dataset.LoadReport{}); err == nil {
		t.Fatal("duplicate ids accepted")
	}
}

func TestExportRoundTrip(t *testing.T) {
	t.Parallel()

	e := engineWith(t, spatial.KindKDTree, randomSegments(300))
	p := Params{Alpha: 1.3, Beta: 2.1, Radius: 3000, Unit: geo.Feet, TopN: 10}
	rs, err := e.Rank(context.Background(), cityHall, p)
	if err != nil || len(rs) == 0 {
		t.Fatalf("Rank: %d results, %v", len(rs), err)
	}
	rs[0].Street = `ODD "NAME", ST`

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rs, p.Unit); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	back, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(back) != len(rs) {
		t.Fatalf("rows = %d, want %d", len(back), len(rs))
	}
	for i := range rs {
		if back[i].Rank != rs[i].Rank || back[i].SegmentID != rs[i].SegmentID || back[i].Score != rs[i].Score || back[i].Street != rs[i].Street {
			t.Fatalf("row %d: got %+v, want %+v", i, back[i], rs[i])
		}
		if math.Abs(back[i].Distance-rs[i].Distance) > 1e-12 {
			t.Fatalf("row %d distance: %v vs %v", i, back[i].Distance, rs[i].Distance)
		}
	}
}
