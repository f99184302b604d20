// 包 geocode：起点解析（坐标、地址文本、地图点击），外部地理编码服务与结果缓存
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"parking-rank/internal/geo"
)

// 外部服务返回的单个结果
type Result struct {
	Point       geo.Point `json:"position"`
	DisplayName string    `json:"display_name"`
}

// 文档注释：地理编码服务接口（统一契约）
// 背景：Nominatim、ArcGIS 与进程外 HTTP 服务实现同一接口，由 Manager 按优先级串行调用。
// 约束：Lookup 无结果时返回 (nil, nil)；网络、状态码、解码失败返回 error；box 为检索范围（西、南、东、北），是否在范围内由调用方复核。
type Provider interface {
	Name() string
	Lookup(ctx context.Context, text string, box geo.BBox) (*Result, error)
	Heartbeat(ctx context.Context) error
}

const defaultHTTPTimeout = 5 * time.Second

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// StatusError 非 2xx 响应
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string { return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.Code) }

// 发送 GET 并按 JSON 解码；out 为 nil 时只检查状态码
func getJSON(ctx context.Context, client *http.Client, name, u string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Provider: name, Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", name, err)
	}
	return nil
}

func bboxParam(b geo.BBox) string {
	return fmt.Sprintf("%g,%g,%g,%g", b.West, b.South, b.East, b.North)
}
