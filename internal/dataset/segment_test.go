package dataset

import (
	"math"
	"strings"
	"testing"
)

// TestNormalizeStrategyOrder covers each coordinate path and the priority
// between them so the chain order cannot drift silently.
func TestNormalizeStrategyOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rec      Record
		strategy string
		lat, lon float64
		ok       bool
	}{
		{
			name:     "center wins over arrays",
			rec:      Record{"center": "[37.8, -122.4]", "latitude": "[1, 2]", "longitude": "[3, 4]"},
			strategy: "center", lat: 37.8, lon: -122.4, ok: true,
		},
		{
			name:     "arrays averaged",
			rec:      Record{"latitude": "[37.70, 37.80]", "longitude": "[-122.40, -122.50]"},
			strategy: "lat_lon_arrays", lat: 37.75, lon: -122.45, ok: true,
		},
		{
			name:     "json arrays",
			rec:      Record{"latitude": []any{37.7, 37.9}, "longitude": []any{-122.4, -122.4}},
			strategy: "lat_lon_arrays", lat: 37.8, lon: -122.4, ok: true,
		},
		{
			name:     "bad center falls through to shape",
			rec:      Record{"center": "[37.8]", "shape": "LINESTRING (-122.40 37.70, -122.45 37.75, -122.50 37.80)"},
			strategy: "shape", lat: 37.75, lon: -122.45, ok: true,
		},
		{
			name:     "unequal arrays fall through",
			rec:      Record{"latitude": "[37.7, 37.8]", "longitude": "[-122.4]", "shape": "LINESTRING(-122.4 37.7, -122.4 37.9)"},
			strategy: "shape", lat: 37.8, lon: -122.4, ok: true,
		},
		{name: "empty arrays dropped", rec: Record{"latitude": "[]", "longitude": "[]"}},
		{name: "garbage shape dropped", rec: Record{"shape": "POINT (1 2)"}},
		{name: "nothing", rec: Record{"STREET": "MARKET ST"}},
		{name: "out of range center", rec: Record{"center": "[137.8, -122.4]"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			seg, strategy, ok := Normalize(7, tc.rec)
			if ok != tc.ok {
				t.Fatalf("ok = %t, want %t", ok, tc.ok)
			}
			if !ok {
				return
			}
			if strategy != tc.strategy {
				t.Fatalf("strategy = %q, want %q", strategy, tc.strategy)
			}
			if math.Abs(seg.Position.Lat-tc.lat) > 1e-9 || math.Abs(seg.Position.Lon-tc.lon) > 1e-9 {
				t.Fatalf("position = %v, want (%f, %f)", seg.Position, tc.lat, tc.lon)
			}
			if seg.ID != 7 {
				t.Fatalf("id = %d, want 7", seg.ID)
			}
		})
	}
}

func TestStreetLabelAndSupply(t *testing.T) {
	t.Parallel()

	base := func() Record { return Record{"center": "[37.8, -122.4]"} }

	r := base()
	r["STREET"] = " MARKET ST "
	r["ST_NAME"] = "IGNORED"
	seg, _, _ := Normalize(0, r)
	if seg.StreetLabel != "MARKET ST" {
		t.Fatalf("label = %q", seg.StreetLabel)
	}

	r = base()
	r["ST_NAME"] = "MISSION"
	r["ST_TYPE"] = "ST"
	r["PRKG_SPLY"] = "12"
	seg, _, _ = Normalize(0, r)
	if seg.StreetLabel != "MISSION ST" {
		t.Fatalf("label = %q", seg.StreetLabel)
	}
	if seg.Supply != 12 || math.Abs(seg.EstimatedAvailable()-0.3*12) > 1e-12 {
		t.Fatalf("supply = %f available = %f", seg.Supply, seg.EstimatedAvailable())
	}

	for _, bad := range []any{"n/a", "-4", nil, "NaN"} {
		r = base()
		if bad != nil {
			r["PRKG_SPLY"] = bad
		}
		seg, _, _ = Normalize(0, r)
		if seg.Supply != 0 {
			t.Fatalf("supply for %v = %f, want 0", bad, seg.Supply)
		}
	}

	seg, _, _ = Normalize(0, base())
	if seg.StreetLabel != "" {
		t.Fatalf("label = %q, want empty", seg.StreetLabel)
	}
}

// TestLoadCSVReportsDrops ensures rows without coordinates are counted but
// never abort loading, and that ids follow the raw row index.
func TestLoadCSVReportsDrops(t *testing.T) {
	t.Parallel()

	const data = "STREET,PRKG_SPLY,center,latitude,longitude,shape\n" +
		"MARKET ST,10,\"[37.79, -122.40]\",,,\n" +
		"NOWHERE ST,5,,,,\n" +
		"MISSION ST,x,,\"[37.76, 37.78]\",\"[-122.41, -122.43]\",\n" +
		"FOLSOM ST,3,,,,\"LINESTRING (-122.41 37.77, -122.40 37.78)\"\n"

	segs, rep, err := LoadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if rep.Rows != 4 || rep.Kept != 3 || rep.Dropped != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(segs) != 3 {
		t.Fatalf("segments = %d, want 3", len(segs))
	}
	wantIDs := []int{0, 2, 3}
	for i, s := range segs {
		if s.ID != wantIDs[i] {
			t.Fatalf("segment %d id = %d, want %d", i, s.ID, wantIDs[i])
		}
	}
	if segs[1].Supply != 0 {
		t.Fatalf("non numeric supply = %f, want 0", segs[1].Supply)
	}
	if rep.ByStrategy["center"] != 1 || rep.ByStrategy["lat_lon_arrays"] != 1 || rep.ByStrategy["shape"] != 1 {
		t.Fatalf("by strategy = %v", rep.ByStrategy)
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	const data = `[
		{"ST_NAME": "POLK", "ST_TYPE": "ST", "PRKG_SPLY": 8, "latitude": [37.78, 37.79], "longitude": [-122.42, -122.42]},
		{"ST_NAME": "LARKIN", "PRKG_SPLY": "4"}
	]`
	segs, rep, err := LoadJSON(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if rep.Kept != 1 || rep.Dropped != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if segs[0].StreetLabel != "POLK ST" || segs[0].Supply != 8 {
		t.Fatalf("segment = %+v", segs[0])
	}
}
