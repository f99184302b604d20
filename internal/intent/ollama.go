package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"parking-rank/internal/errs"
	"parking-rank/internal/geo"
	"parking-rank/internal/logger"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "mistral"
)

const ollamaPrompt = `You convert natural-language parking requests in San Francisco, CA into one JSON object.
Allowed keys (omit or use null when unsure):
origin_text (string, a place name or address), lat (number), lon (number),
walking_preference ("close"|"balanced"|"far"), radius_mi (number), units ("ft"|"mi"),
alpha (number), beta (number), top_n (integer).
If the user says "top 4", "show 4" or "4 suggestions", set top_n to 4.
Return ONLY the JSON object.
User: %s
JSON:`

// 文档注释：Ollama 文本理解后端
// 背景：调用 {base}/api/generate（stream=false），从 response 字段中截取第一个 JSON 对象。
// 约束：模型输出不可信，数值字段容忍字符串与 null；超时由调用方 ctx 控制。
type OllamaParser struct {
	base   string
	model  string
	client *http.Client
}

func NewOllama(base, model string, client *http.Client) *OllamaParser {
	if base == "" {
		base = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if client == nil {
		client = &http.Client{}
	}
	base = strings.TrimSuffix(strings.TrimSuffix(base, "/"), "/api/generate")
	return &OllamaParser{base: base, model: model, client: client}
}

func (o *OllamaParser) Name() string { return "ollama" }

func (o *OllamaParser) Parse(ctx context.Context, text string) (Request, error) {
	body, _ := json.Marshal(map[string]any{
		"model":  o.model,
		"prompt": fmt.Sprintf(ollamaPrompt, strings.TrimSpace(text)),
		"stream": false,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Request{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return Request{}, errs.ServiceUnavailable("intent backend ollama unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Request{}, errs.ServiceUnavailable("intent backend ollama failed", fmt.Errorf("status %d", resp.StatusCode))
	}
	var gen struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return Request{}, errs.ServiceUnavailable("intent backend ollama returned malformed body", err)
	}
	obj := firstObject(gen.Response)
	if obj == "" {
		logger.L().Warn("intent_no_json", "backend", o.Name(), "len", len(gen.Response))
		return Request{}, nil
	}
	var out llmFields
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		logger.L().Warn("intent_bad_json", "backend", o.Name(), "err", err)
		return Request{}, nil
	}
	return out.request(), nil
}

// 模型输出字段
type llmFields struct {
	OriginText string    `json:"origin_text"`
	Address    string    `json:"address"`
	Lat        flexFloat `json:"lat"`
	Lon        flexFloat `json:"lon"`
	Walking    string    `json:"walking_preference"`
	RadiusMi   flexFloat `json:"radius_mi"`
	Units      string    `json:"units"`
	Alpha      flexFloat `json:"alpha"`
	Beta       flexFloat `json:"beta"`
	TopN       flexFloat `json:"top_n"`
}

func (f llmFields) request() Request {
	var r Request
	r.OriginText = strings.TrimSpace(f.OriginText)
	if r.OriginText == "" {
		r.OriginText = strings.TrimSpace(f.Address)
	}
	if f.Lat.ok && f.Lon.ok {
		r.Origin = &geo.Point{Lat: f.Lat.v, Lon: f.Lon.v}
	}
	r.Walking = f.Walking
	r.RadiusMi = f.RadiusMi.ptr()
	if u, ok := geo.ParseUnit(f.Units); ok {
		r.Unit = u
	}
	r.Alpha = f.Alpha.ptr()
	r.Beta = f.Beta.ptr()
	// 越界或非有限的条数视为未给出；过大值先收到 int32 范围，交给 Apply 截断
	if v := f.TopN.ptr(); v != nil && *v >= 1 && !math.IsInf(*v, 0) {
		n := int(math.Min(*v, math.MaxInt32))
		r.TopN = &n
	}
	return r
}

// flexFloat 接受数字、数字字符串与 null；ok 标记值是否真的给出（空串与 null 不算）
type flexFloat struct {
	v  float64
	ok bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		*f = flexFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	*f = flexFloat{v: v, ok: true}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}

// firstObject 截取文本中第一个 '{' 到最后一个 '}' 之间的内容
func firstObject(s string) string {
	i := strings.Index(s, "{")
	j := strings.LastIndex(s, "}")
	if i < 0 || j <= i {
		return ""
	}
	return s[i : j+1]
}
