package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"parking-rank/internal/geo"
)

// 文档注释：外部 HTTP 地理编码适配器
// 背景：为自建或第三方服务提供进程外接入方式，通过简单 HTTP 契约实现查询与心跳。
// 约束：约定 /health 与 /lookup?q=&bbox=w,s,e,n 接口；404 或 found=false 视为无结果。
type HTTPProvider struct {
	name     string
	endpoint string
	client   *http.Client
}

func NewHTTPProvider(name, endpoint string, client *http.Client) *HTTPProvider {
	if name == "" {
		name = "http"
	}
	return &HTTPProvider{name: name, endpoint: strings.TrimRight(endpoint, "/"), client: defaultClient(client)}
}

func (h *HTTPProvider) Name() string { return h.name }

func (h *HTTPProvider) Heartbeat(ctx context.Context) error {
	return getJSON(ctx, h.client, h.name, h.endpoint+"/health", nil, nil)
}

func (h *HTTPProvider) Lookup(ctx context.Context, text string, box geo.BBox) (*Result, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("bbox", bboxParam(box))
	var m struct {
		Found       bool    `json:"found"`
		Lat         float64 `json:"lat"`
		Lon         float64 `json:"lon"`
		DisplayName string  `json:"display_name"`
	}
	err := getJSON(ctx, h.client, h.name, h.endpoint+"/lookup?"+q.Encode(), nil, &m)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !m.Found {
		return nil, nil
	}
	return &Result{Point: geo.Point{Lat: m.Lat, Lon: m.Lon}, DisplayName: m.DisplayName}, nil
}
