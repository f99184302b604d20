package geocode

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"parking-rank/internal/geo"
)

const DefaultArcGISURL = "https://geocode.arcgis.com/arcgis/rest/services/World/GeocodeServer"

// 文档注释：ArcGIS World Geocoding（findAddressCandidates）
// 约束：匿名调用不落库；searchExtent 只影响候选排序，结果是否在区域内仍由 Manager 复核。
type ArcGIS struct {
	base   string
	client *http.Client
}

func NewArcGIS(base string, client *http.Client) *ArcGIS {
	if base == "" {
		base = DefaultArcGISURL
	}
	return &ArcGIS{base: strings.TrimRight(base, "/"), client: defaultClient(client)}
}

func (a *ArcGIS) Name() string { return "arcgis" }

func (a *ArcGIS) Lookup(ctx context.Context, text string, box geo.BBox) (*Result, error) {
	q := url.Values{}
	q.Set("SingleLine", text)
	q.Set("f", "json")
	q.Set("maxLocations", "1")
	q.Set("outFields", "Match_addr")
	q.Set("searchExtent", bboxParam(box))
	var body struct {
		Candidates []struct {
			Address  string  `json:"address"`
			Score    float64 `json:"score"`
			Location struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"location"`
		} `json:"candidates"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := getJSON(ctx, a.client, a.Name(), a.base+"/findAddressCandidates?"+q.Encode(), nil, &body); err != nil {
		return nil, err
	}
	// ArcGIS 以 200 返回业务错误
	if body.Error != nil {
		return nil, &StatusError{Provider: a.Name(), Code: body.Error.Code}
	}
	if len(body.Candidates) == 0 {
		return nil, nil
	}
	c := body.Candidates[0]
	return &Result{Point: geo.Point{Lat: c.Location.Y, Lon: c.Location.X}, DisplayName: c.Address}, nil
}

// Heartbeat 读取服务描述
func (a *ArcGIS) Heartbeat(ctx context.Context) error {
	return getJSON(ctx, a.client, a.Name(), a.base+"?f=json", nil, nil)
}
