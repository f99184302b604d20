package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"parking-rank/internal/geo"
	"parking-rank/internal/region"
)

var (
	reCoords   = regexp.MustCompile(`(-?\d+\.\d+)\s*,\s*(-?\d+\.\d+)`)
	reMiles    = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:mi|miles?)\b`)
	reFeet     = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:ft|feet|foot)\b`)
	reHalfMile = regexp.MustCompile(`(?i)\bhalf\s+(?:a\s+)?mile\b`)
	reQuarter  = regexp.MustCompile(`(?i)\bquarter\s+(?:of\s+)?(?:a\s+)?mile\b`)
	reFeetWord = regexp.MustCompile(`(?i)\b(?:feet|ft)\b`)
	reMileWord = regexp.MustCompile(`(?i)\b(?:mi|miles?)\b`)
	reAlpha    = regexp.MustCompile(`(?i)\balpha\s*[=:]?\s*(\d+(?:\.\d+)?)`)
	reBeta     = regexp.MustCompile(`(?i)\bbeta\s*[=:]?\s*(\d+(?:\.\d+)?)`)
	reNear     = regexp.MustCompile(`(?i)\b(?:near|at|around|by|close to|next to)\s+(?:the\s+)?([a-z0-9][a-z0-9 '&.-]*?)\s*(?:,|;|$|\bwithin\b|\bshow\b|\btop\b|\bkeep\b|\bin\b|\d+\s*(?:mi|ft|miles?|feet)\b)`)
	reStreet   = regexp.MustCompile(`(?i)\b\d+\s+[a-z0-9 ]+?\s(?:st|street|ave|avenue|blvd|boulevard|rd|road|way|dr|drive|pl|place)\b`)

	reClose = regexp.MustCompile(`(?i)\b(?:keep it close|close by|closest|short walk|nearby|don'?t want to walk)\b`)
	reFar   = regexp.MustCompile(`(?i)\b(?:don'?t mind walking|long walk|walk(?:ing)? far|farther away)\b`)
	reBal   = regexp.MustCompile(`(?i)\bbalanced\b`)

	// top 4 / top4 / show 4 / 4 top / 4 suggestions / suggestions: 4
	reTopN = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\btop\s*(\d{1,2})\b`),
		regexp.MustCompile(`(?i)\bshow\s+(\d{1,2})\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2})\s*top\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:results?|suggestions?|spots?|options?)\b`),
		regexp.MustCompile(`(?i)\b(?:results?|suggestions?|spots?)\s*[=:]?\s*(\d{1,2})\b`),
	}
)

// top_n 合理范围，超出视为误匹配
const (
	ruleTopNMin = 1
	ruleTopNMax = 15
)

// 文档注释：基于正则的离线解析器
// 背景：不依赖外部服务，可作为本地后端或 LLM 后端不可用时的回退。
// 约束：只输出文本中有明确证据的字段；起点优先级为坐标、兴趣点别名、near/at 短语、门牌地址。
type RuleParser struct {
	region *region.Validator
}

func NewRuleParser(v *region.Validator) *RuleParser {
	if v == nil {
		v = region.Default()
	}
	return &RuleParser{region: v}
}

func (p *RuleParser) Name() string { return "rules" }

func (p *RuleParser) Parse(_ context.Context, text string) (Request, error) {
	var r Request
	txt := strings.TrimSpace(text)
	if txt == "" {
		return r, nil
	}

	rest := txt
	if m := reCoords.FindStringSubmatch(txt); m != nil {
		lat, _ := strconv.ParseFloat(m[1], 64)
		lon, _ := strconv.ParseFloat(m[2], 64)
		r.Origin = &geo.Point{Lat: lat, Lon: lon}
		rest = strings.Replace(txt, m[0], " ", 1)
	}

	switch {
	case reFeet.MatchString(rest):
		v := parseNum(reFeet.FindStringSubmatch(rest)[1])
		mi := geo.Feet.ToMiles(v)
		r.RadiusMi = &mi
	case reMiles.MatchString(rest):
		v := parseNum(reMiles.FindStringSubmatch(rest)[1])
		r.RadiusMi = &v
	case reQuarter.MatchString(rest):
		v := 0.25
		r.RadiusMi = &v
	case reHalfMile.MatchString(rest):
		v := 0.5
		r.RadiusMi = &v
	}
	if reFeetWord.MatchString(rest) {
		r.Unit = geo.Feet
	} else if reMileWord.MatchString(rest) {
		r.Unit = geo.Miles
	}

	if m := reAlpha.FindStringSubmatch(rest); m != nil {
		v := parseNum(m[1])
		r.Alpha = &v
	}
	if m := reBeta.FindStringSubmatch(rest); m != nil {
		v := parseNum(m[1])
		r.Beta = &v
	}

	switch {
	case reClose.MatchString(rest):
		r.Walking = WalkClose
	case reFar.MatchString(rest):
		r.Walking = WalkFar
	case reBal.MatchString(rest):
		r.Walking = WalkBalanced
	}

	for _, re := range reTopN {
		if m := re.FindStringSubmatch(rest); m != nil {
			n, _ := strconv.Atoi(m[1])
			if n >= ruleTopNMin && n <= ruleTopNMax {
				r.TopN = &n
				break
			}
		}
	}

	if r.Origin == nil {
		r.OriginText = p.originText(rest)
	}
	return r, nil
}

func (p *RuleParser) originText(s string) string {
	if poi, ok := p.region.ResolveAlias(s); ok {
		return poi.Name
	}
	if m := reNear.FindStringSubmatch(s); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			return t
		}
	}
	if m := reStreet.FindString(s); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}

func parseNum(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
