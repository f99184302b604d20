package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"parking-rank/internal/geo"
)

const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// 文档注释：Nominatim（OpenStreetMap）地理编码
// 约束：使用 viewbox + bounded=1 限定检索范围，countrycodes=us；必须携带可识别的 User-Agent，否则会被服务端拒绝。
type Nominatim struct {
	base      string
	userAgent string
	client    *http.Client
}

func NewNominatim(base, userAgent string, client *http.Client) *Nominatim {
	if base == "" {
		base = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = "parking-rank/1.0"
	}
	return &Nominatim{base: strings.TrimRight(base, "/"), userAgent: userAgent, client: defaultClient(client)}
}

func (n *Nominatim) Name() string { return "nominatim" }

func (n *Nominatim) header() http.Header {
	h := http.Header{}
	h.Set("User-Agent", n.userAgent)
	return h
}

func (n *Nominatim) Lookup(ctx context.Context, text string, box geo.BBox) (*Result, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("countrycodes", "us")
	// viewbox 顺序：左、上、右、下
	q.Set("viewbox", fmt.Sprintf("%g,%g,%g,%g", box.West, box.North, box.East, box.South))
	q.Set("bounded", "1")
	var rows []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := getJSON(ctx, n.client, n.Name(), n.base+"/search?"+q.Encode(), n.header(), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	lat, err1 := strconv.ParseFloat(rows[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(rows[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("nominatim: bad coordinates %q,%q", rows[0].Lat, rows[0].Lon)
	}
	return &Result{Point: geo.Point{Lat: lat, Lon: lon}, DisplayName: rows[0].DisplayName}, nil
}

// Heartbeat 访问 /status
func (n *Nominatim) Heartbeat(ctx context.Context) error {
	return getJSON(ctx, n.client, n.Name(), n.base+"/status?format=json", n.header(), nil)
}
