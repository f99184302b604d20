// 包 region：旧金山边界框、兴趣点别名表与预设起点
package region

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"parking-rank/internal/geo"
)

// 旧金山市区范围（西、南、东、北）
var SanFrancisco = geo.BBox{West: -122.514, South: 37.708, East: -122.357, North: 37.832}

// 文档注释：兴趣点
// 约束：Point 为人工核对过的坐标，优先于任何外部地理编码结果；Query 为发给地理编码服务的规范文本。
type POI struct {
	Name  string    `json:"name"`
	Point geo.Point `json:"position"`
	Query string    `json:"-"`
}

func poi(name string, lat, lon float64) POI {
	return POI{Name: name, Point: geo.Point{Lat: lat, Lon: lon}, Query: name + ", San Francisco, CA"}
}

var (
	pier39          = poi("Pier 39", 37.808378, -122.409837)
	fishermansWharf = poi("Fisherman's Wharf", 37.808491, -122.415478)
	goldenGatePark  = poi("Golden Gate Park", 37.769420, -122.486214)
	palaceFineArts  = poi("Palace of Fine Arts", 37.802780, -122.448330)
	salesforcePark  = poi("Salesforce Park", 37.789700, -122.396600)
	coitTower       = poi("Coit Tower", 37.802395, -122.405822)
	oraclePark      = poi("Oracle Park", 37.778595, -122.389270)
	alamoSquare     = poi("Alamo Square", 37.776358, -122.434871)
	ferryBuilding   = poi("Ferry Building", 37.795490, -122.393700)
	cityHall        = poi("San Francisco City Hall", 37.779190, -122.419140)
	goldenGateBr    = poi("Golden Gate Bridge", 37.807750, -122.474000)
)

// 别名（任意写法，匹配前统一经 Normalize 处理）
var defaultAliases = map[string]POI{
	"pier 39":                 pier39,
	"pier39":                  pier39,
	"fishermans wharf":        fishermansWharf,
	"fisherman's wharf":       fishermansWharf,
	"fishermens wharf":        fishermansWharf,
	"golden gate park":        goldenGatePark,
	"palace of fine arts":     palaceFineArts,
	"salesforce park":         salesforcePark,
	"coit tower":              coitTower,
	"oracle park":             oraclePark,
	"at&t park":               oraclePark,
	"att park":                oraclePark,
	"alamo square":            alamoSquare,
	"painted ladies":          alamoSquare,
	"ferry building":          ferryBuilding,
	"san francisco city hall": cityHall,
	"sf city hall":            cityHall,
	"city hall":               cityHall,
	"golden gate bridge":      goldenGateBr,
}

var defaultPresets = []POI{goldenGatePark, pier39, salesforcePark, palaceFineArts, cityHall, fishermansWharf}

// DefaultOrigin 未指定起点时使用市政厅
var DefaultOrigin = cityHall

type alias struct {
	key string
	poi POI
}

// 文档注释：区域校验器
// 约束：构建后只读，可并发使用；别名按长度降序匹配，长别名优先（"sf city hall" 先于 "city hall"）。
type Validator struct {
	box     geo.BBox
	aliases []alias
	exact   map[string]POI
	presets []POI
}

// Default 旧金山配置
func Default() *Validator { return New(SanFrancisco, defaultAliases, defaultPresets) }

func New(box geo.BBox, aliases map[string]POI, presets []POI) *Validator {
	v := &Validator{box: box, exact: make(map[string]POI, len(aliases)), presets: presets}
	for k, p := range aliases {
		nk := Normalize(k)
		if nk == "" {
			continue
		}
		v.exact[nk] = p
		v.aliases = append(v.aliases, alias{key: nk, poi: p})
	}
	sort.Slice(v.aliases, func(i, j int) bool {
		if len(v.aliases[i].key) != len(v.aliases[j].key) {
			return len(v.aliases[i].key) > len(v.aliases[j].key)
		}
		return v.aliases[i].key < v.aliases[j].key
	})
	return v
}

func (v *Validator) Box() geo.BBox { return v.box }

// Contains 边界上的点视为区域内
func (v *Validator) Contains(p geo.Point) bool { return v.box.Contains(p) }

// 文档注释：别名解析
// 约束：大小写、标点、"pier39"/"pier 39" 之类的空格差异及末尾城市名均不影响匹配；按整词匹配文本中出现的别名。
// 未命中返回 false，由调用方继续走外部地理编码。
func (v *Validator) ResolveAlias(text string) (POI, bool) {
	key := Normalize(text)
	if key == "" {
		return POI{}, false
	}
	if p, ok := v.exact[stripCity(key)]; ok {
		return p, true
	}
	padded := " " + key + " "
	for _, a := range v.aliases {
		if strings.Contains(padded, " "+a.key+" ") {
			return a.poi, true
		}
	}
	return POI{}, false
}

var cityMention = regexp.MustCompile(`(?i)(^|[^a-z])(san\s*francisco|sf|s\.f\.)([^a-z]|$)`)

// 文档注释：规范化地理编码查询
// 约束：整句恰为别名时返回该兴趣点的规范文本；否则未提及城市时追加 ", San Francisco, CA"。
func (v *Validator) CanonicalQuery(text string) string {
	q := strings.TrimSpace(text)
	if q == "" {
		return q
	}
	if p, ok := v.exact[stripCity(Normalize(q))]; ok {
		return p.Query
	}
	if !cityMention.MatchString(q) {
		q += ", San Francisco, CA"
	}
	return q
}

// Presets 预设起点（展示顺序固定）
func (v *Validator) Presets() []POI {
	out := make([]POI, len(v.presets))
	copy(out, v.presets)
	return out
}

// Preset 按名称查找预设，不区分大小写与标点
func (v *Validator) Preset(name string) (POI, bool) {
	key := Normalize(name)
	for _, p := range v.presets {
		if Normalize(p.Name) == key {
			return p, true
		}
	}
	return POI{}, false
}

// 文档注释：文本归一化（缓存键与别名匹配共用）
// 约束：小写；撇号删除；其余非字母数字字符视为空格；字母与数字相邻处补空格；连续空白合并。
func Normalize(s string) string {
	var b strings.Builder
	prev := rune(' ')
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if prev != ' ' && unicode.IsDigit(prev) != unicode.IsDigit(r) {
				b.WriteRune(' ')
			}
			b.WriteRune(r)
			prev = r
		default:
			if prev != ' ' {
				b.WriteRune(' ')
			}
			prev = ' '
		}
	}
	return strings.TrimSpace(b.String())
}

var trailingCity = regexp.MustCompile(`(^| )(san francisco|sf|s f)( ca| california)?( usa| us)?$`)

// 去掉末尾城市名（"pier 39 san francisco ca" → "pier 39"）
func stripCity(key string) string {
	return strings.TrimSpace(trailingCity.ReplaceAllString(key, ""))
}
