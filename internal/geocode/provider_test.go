package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"parking-rank/internal/geo"
	"parking-rank/internal/region"
)

func TestNominatimLookup(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			gotUA = r.Header.Get("User-Agent")
			q := r.URL.Query()
			if q.Get("bounded") != "1" || q.Get("countrycodes") != "us" || q.Get("viewbox") != "-122.514,37.832,-122.357,37.708" {
				http.Error(w, "bad query "+r.URL.RawQuery, http.StatusBadRequest)
				return
			}
			if q.Get("q") == "nowhere" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[{"lat":"37.7936","lon":"-122.3958","display_name":"1 Market St"}]`))
		case "/status":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "parking-rank-test", srv.Client())
	res, err := n.Lookup(context.Background(), "1 Market St, San Francisco, CA", region.SanFrancisco)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res == nil || res.Point != (geo.Point{Lat: 37.7936, Lon: -122.3958}) || res.DisplayName != "1 Market St" {
		t.Fatalf("result = %+v", res)
	}
	if gotUA != "parking-rank-test" {
		t.Fatalf("user agent = %q", gotUA)
	}
	if res, err := n.Lookup(context.Background(), "nowhere", region.SanFrancisco); err != nil || res != nil {
		t.Fatalf("empty lookup = %+v, %v", res, err)
	}
	if err := n.Heartbeat(context.Background()); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
}

func TestArcGISLookup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("SingleLine") {
		case "broken":
			_, _ = w.Write([]byte(`{"error":{"code":498,"message":"Invalid token"}}`))
		case "none":
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		default:
			if q.Get("searchExtent") != "-122.514,37.708,-122.357,37.832" || q.Get("maxLocations") != "1" {
				http.Error(w, "bad query", http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"candidates":[{"address":"Ferry Bldg","score":100,"location":{"x":-122.3937,"y":37.7955}}]}`))
		}
	}))
	defer srv.Close()

	a := NewArcGIS(srv.URL, srv.Client())
	res, err := a.Lookup(context.Background(), "ferry", region.SanFrancisco)
	if err != nil || res == nil || res.Point != (geo.Point{Lat: 37.7955, Lon: -122.3937}) {
		t.Fatalf("Lookup = %+v, %v", res, err)
	}
	if res, err := a.Lookup(context.Background(), "none", region.SanFrancisco); res != nil || err != nil {
		t.Fatalf("empty = %+v, %v", res, err)
	}
	var se *StatusError
	if _, err := a.Lookup(context.Background(), "broken", region.SanFrancisco); !errors.As(err, &se) || se.Code != 498 {
		t.Fatalf("broken = %v", err)
	}
}

func TestHTTPProvider(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/lookup":
			switch r.URL.Query().Get("q") {
			case "missing":
				http.NotFound(w, r)
			case "nofound":
				_, _ = w.Write([]byte(`{"found":false}`))
			case "boom":
				http.Error(w, "boom", http.StatusInternalServerError)
			default:
				_, _ = w.Write([]byte(`{"found":true,"lat":37.78,"lon":-122.41,"display_name":"x"}`))
			}
		}
	}))
	defer srv.Close()

	h := NewHTTPProvider("ext", srv.URL+"/", srv.Client())
	if h.Name() != "ext" {
		t.Fatalf("name = %q", h.Name())
	}
	ctx := context.Background()
	if res, err := h.Lookup(ctx, "somewhere", region.SanFrancisco); err != nil || res == nil || res.DisplayName != "x" {
		t.Fatalf("hit = %+v, %v", res, err)
	}
	for _, q := range []string{"missing", "nofound"} {
		if res, err := h.Lookup(ctx, q, region.SanFrancisco); err != nil || res != nil {
			t.Fatalf("%s = %+v, %v", q, res, err)
		}
	}
	if _, err := h.Lookup(ctx, "boom", region.SanFrancisco); err == nil {
		t.Fatal("expected error on 500")
	}
	if err := h.Heartbeat(ctx); err == nil {
		t.Fatal("expected heartbeat failure on 503")
	}
}
