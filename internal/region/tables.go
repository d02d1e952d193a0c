package region

// Canonical county labels. "台" is canonical over "臺".
var counties = map[string]struct{}{
	"台北市": {}, "新北市": {}, "桃園市": {}, "台中市": {}, "台南市": {},
	"高雄市": {}, "基隆市": {}, "新竹市": {}, "嘉義市": {},
	"新竹縣": {}, "苗栗縣": {}, "彰化縣": {}, "南投縣": {}, "雲林縣": {},
	"嘉義縣": {}, "屏東縣": {}, "宜蘭縣": {}, "花蓮縣": {}, "台東縣": {},
	"澎湖縣": {}, "金門縣": {}, "連江縣": {},
}

// variants maps legacy, simplified and government-office spellings to the
// canonical county. Checked before any rule-based rewriting.
var variants = map[string]string{
	// Traditional 臺 spellings.
	"臺北市": "台北市",
	"臺中市": "台中市",
	"臺南市": "台南市",
	"臺東縣": "台東縣",

	// Counties abolished or upgraded during municipality reorganisations.
	"桃園縣": "桃園市",
	"台北縣": "新北市",
	"臺北縣": "新北市",
	"台中縣": "台中市",
	"臺中縣": "台中市",
	"台南縣": "台南市",
	"臺南縣": "台南市",
	"高雄縣": "高雄市",

	// Simplified character feeds.
	"云林县": "雲林縣",
	"嘉义县": "嘉義縣",
	"嘉义市": "嘉義市",
	"新竹县": "新竹縣",
	"苗栗县": "苗栗縣",
	"彰化县": "彰化縣",
	"南投县": "南投縣",
	"屏东县": "屏東縣",
	"宜兰县": "宜蘭縣",
	"花莲县": "花蓮縣",
	"台东县": "台東縣",
	"澎湖县": "澎湖縣",
	"金门县": "金門縣",
	"连江县": "連江縣",

	// Government-office labels seen in station feeds.
	"台北市政府": "台北市",
	"臺北市政府": "台北市",
	"新北市政府": "新北市",
	"桃園市政府": "桃園市",
	"台中市政府": "台中市",
	"臺中市政府": "台中市",
	"台南市政府": "台南市",
	"臺南市政府": "台南市",
	"高雄市政府": "高雄市",
	"基隆市政府": "基隆市",
}

// Suffixes stripped when a raw label fails the variant lookup, longest first.
var stripSuffixes = []string{"市政府", "縣政府", "政府"}

// stems maps an unambiguous county stem to its canonical suffix form.
// Stems shared by a city and a county (新竹, 嘉義) are intentionally
// absent: a bare ambiguous stem is returned unchanged rather than guessed.
var stems = map[string]string{
	"台北": "台北市",
	"新北": "新北市",
	"桃園": "桃園市",
	"台中": "台中市",
	"台南": "台南市",
	"高雄": "高雄市",
	"基隆": "基隆市",
	"苗栗": "苗栗縣",
	"彰化": "彰化縣",
	"南投": "南投縣",
	"雲林": "雲林縣",
	"屏東": "屏東縣",
	"宜蘭": "宜蘭縣",
	"花蓮": "花蓮縣",
	"台東": "台東縣",
	"澎湖": "澎湖縣",
	"金門": "金門縣",
	"連江": "連江縣",
}

// Box is a rectangular lat/lon range approximating a county's territory.
type Box struct {
	County string
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// defaultBoxes is the ordered geocoding table. Boxes overlap at the edges;
// first match wins, so smaller or enclosed areas come before the larger
// neighbours that surround them (基隆市 and 台北市 before 新北市).
var defaultBoxes = []Box{
	{"基隆市", 25.00, 25.16, 121.61, 121.81},
	{"台北市", 24.96, 25.21, 121.45, 121.67},
	{"新北市", 24.67, 25.30, 121.28, 122.01},
	{"桃園市", 24.58, 25.12, 120.98, 121.48},
	{"新竹市", 24.74, 24.85, 120.88, 121.03},
	{"新竹縣", 24.43, 24.93, 120.91, 121.45},
	{"苗栗縣", 24.28, 24.75, 120.61, 121.27},
	{"台中市", 23.98, 24.44, 120.45, 121.44},
	{"彰化縣", 23.78, 24.20, 120.23, 120.72},
	{"南投縣", 23.42, 24.20, 120.61, 121.35},
	{"雲林縣", 23.48, 23.85, 120.08, 120.72},
	{"嘉義市", 23.44, 23.52, 120.39, 120.50},
	{"嘉義縣", 23.20, 23.65, 119.98, 120.95},
	{"台南市", 22.88, 23.42, 120.02, 120.66},
	{"高雄市", 22.46, 23.47, 120.16, 121.05},
	{"屏東縣", 21.87, 22.90, 120.41, 120.92},
	{"宜蘭縣", 24.30, 24.99, 121.31, 122.01},
	{"花蓮縣", 23.10, 24.39, 120.98, 121.78},
	{"台東縣", 21.95, 23.45, 120.73, 121.62},
	{"澎湖縣", 23.18, 23.81, 119.31, 119.73},
	{"金門縣", 24.15, 24.56, 118.14, 118.51},
	{"連江縣", 25.94, 26.39, 119.89, 120.51},
}

// defaultKeywords maps a parent region stem to sub-region terms used for
// keyword-expansion filtering: a record whose only geographic signal is a
// district or road name still matches its parent-region query.
var defaultKeywords = map[string][]string{
	"台北": {"信義", "大安", "中山", "松山", "萬華", "士林", "北投", "內湖", "南港", "文山", "大同"},
	"新北": {"板橋", "三重", "中和", "永和", "新莊", "新店", "土城", "蘆洲", "樹林", "鶯歌", "三峽", "淡水", "汐止", "瑞芳"},
	"桃園": {"中壢", "平鎮", "八德", "楊梅", "蘆竹", "大溪", "龜山", "龍潭", "新屋", "觀音"},
	"基隆": {"暖暖", "七堵", "安樂", "仁愛"},
	"台中": {"豐原", "大里", "太平", "清水", "沙鹿", "大甲", "烏日", "霧峰", "后里"},
	"台南": {"永康", "安平", "新營", "善化", "麻豆", "佳里", "仁德"},
	"高雄": {"鳳山", "左營", "楠梓", "三民", "前鎮", "小港", "岡山", "旗山", "美濃"},
}
