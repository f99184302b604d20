package api

import (
	"net/http"

	"parking-rank/internal/config"
	"parking-rank/internal/geocode"
	"parking-rank/internal/intent"
	"parking-rank/internal/logger"
	"parking-rank/internal/region"
)

// 文档注释：按 GEOCODERS 顺序注册地理编码服务（服务端与命令行共用）
// 约束：未知名称跳过并告警；ext 仅在配置了 EXT_GEOCODER_ENDPOINT 时注册；返回实际注册数量。
func RegisterGeocoders(m *geocode.Manager, cfg config.Config) int {
	l := logger.L()
	client := &http.Client{Timeout: cfg.GeocodeTimeout}
	n := 0
	for i, name := range cfg.Geocoders {
		var p geocode.Provider
		switch name {
		case "nominatim":
			p = geocode.NewNominatim(cfg.NominatimURL, cfg.NominatimUA, client)
		case "arcgis":
			p = geocode.NewArcGIS(cfg.ArcGISURL, client)
		case "ext", cfg.ExtName:
			if cfg.ExtEndpoint == "" {
				l.Warn("geocoder_skip", "name", name, "reason", "EXT_GEOCODER_ENDPOINT unset")
				continue
			}
			p = geocode.NewHTTPProvider(cfg.ExtName, cfg.ExtEndpoint, client)
		default:
			l.Warn("geocoder_unknown", "name", name)
			continue
		}
		m.Register(p, i)
		n++
	}
	return n
}

// 文档注释：按 INTENT_BACKEND 构建意图提取器
// 约束：未知后端返回 nil（/intent 返回 503）；ollama 后端仅在 INTENT_RULES_FALLBACK 为真时带规则回退。
func BuildExtractor(cfg config.Config, v *region.Validator) *intent.Extractor {
	rules := intent.NewRuleParser(v)
	switch cfg.IntentBackend {
	case config.IntentRules:
		return intent.NewExtractor(rules, nil, v, cfg.IntentTimeout)
	case config.IntentOllama:
		var fallback intent.Parser
		if cfg.IntentFallback {
			fallback = rules
		}
		return intent.NewExtractor(intent.NewOllama(cfg.OllamaURL, cfg.OllamaModel, nil), fallback, v, cfg.IntentTimeout)
	}
	logger.L().Warn("intent_disabled", "backend", cfg.IntentBackend)
	return nil
}
