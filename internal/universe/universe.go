// Package universe defines the static ETF universe: tickers, markets, themes
// and display metadata. The universe is enumerated once; prices for it are
// fetched per data-load cycle by the market data gateway.
package universe

import (
	"hash/fnv"
	"sort"
	"strings"
)

// Market identifies the listing market of an instrument.
type Market string

const (
	// MarketKR is the domestic (Korean) market.
	MarketKR Market = "KR"
	// MarketUS is the foreign (US) market.
	MarketUS Market = "US"
)

// Theme is the thematic category of an instrument.
type Theme string

const (
	ThemeTechnology     Theme = "Technology"
	ThemeEnergy         Theme = "Energy"
	ThemeHealthcare     Theme = "Healthcare"
	ThemeFinancials     Theme = "Financials"
	ThemeConsumer       Theme = "Consumer"
	ThemeIndustrials    Theme = "Industrials"
	ThemeUtilities      Theme = "Utilities"
	ThemeCommunications Theme = "Communications"
	ThemeMaterials      Theme = "Materials"
	ThemeRealEstate     Theme = "Real Estate"
	ThemeBroadMarket    Theme = "Broad Market"
	ThemeBonds          Theme = "Bonds"
	ThemeCommodities    Theme = "Commodities"
	ThemeInternational  Theme = "International"
	ThemeNone           Theme = ""
)

// krTickers is the domestic ETF list (KRX codes).
var krTickers = []string{
	"069500", "102110", "114800", "132030", "133690", "148020", "153130", "232080", "251340",
	"278530", "277630", "309210", "305720", "364990", "371460", "379800", "381170", "453950",
	"091160", "069660", "280940", "114460", "130680", "305050", "379780", "261240", "381560",
	"148070",
	"122630", "139660", "139670", "143850", "152100", "157490", "182490", "195930", "200250",
	"217770", "233740", "251350", "267770", "269420", "273130",
	"228800", "292050", "295820", "315960", "272650",
}

// usTickers is the foreign ETF list (US exchange symbols).
var usTickers = []string{
	"SPY", "VOO", "VTI", "IWM", "QQQ", "XLK", "XLF", "XLY", "XLP", "XLI", "XLU", "XLC", "XLB",
	"VTV", "VUG", "VB", "VEA", "VWO", "AGG", "BND", "TLT", "IEF", "SHY", "LQD", "HYG", "TIP",
	"GLD", "SLV", "DBC", "USO", "UNG", "PPLT", "ARKK", "BOTZ", "TAN", "ICLN", "PBW", "PLUG",
	"VNQ", "SCHH", "IYR", "EFA", "EEM", "IEFA", "EMB", "SCHD", "DIA", "EWY", "EWZ",
	"EWU", "EWH", "EWG", "EWC", "EWJ", "EWT",
	"XLE", "XLV", "XLRE", "XME", "XBI", "XRT", "XHB", "XOP", "KRE", "KBE", "ITB", "IHI",
	"VBK", "VBR", "VEU", "VSS", "VGK", "VPL", "VGT", "VDC", "VDE", "VFH", "VHT", "VIS",
	"SOXX", "SMH", "FINX", "HACK", "ROBO", "ESPO", "CLOU", "CIBR", "SKYY", "WCLD",
	"VCIT", "VCSH", "VGIT", "VGSH", "VTEB", "MUB", "SCHZ", "SCHO", "SCHR",
	"VXUS", "IXUS", "FTIHX", "FXNAX", "VT", "ACWI", "URTH", "IOO",
}

// themeMap maps tickers to their thematic category.
var themeMap = map[string]Theme{
	// Technology
	"QQQ": ThemeTechnology, "XLK": ThemeTechnology, "SOXX": ThemeTechnology,
	"BOTZ": ThemeTechnology, "ARKK": ThemeTechnology, "SMH": ThemeTechnology,
	"VGT": ThemeTechnology, "FINX": ThemeTechnology, "HACK": ThemeTechnology,
	"ROBO": ThemeTechnology, "ESPO": ThemeTechnology, "CLOU": ThemeTechnology,
	"CIBR": ThemeTechnology, "SKYY": ThemeTechnology, "WCLD": ThemeTechnology,
	"133690": ThemeTechnology, "232080": ThemeTechnology, "371460": ThemeTechnology,
	"379800": ThemeTechnology, "453950": ThemeTechnology, "309210": ThemeTechnology,
	"114800": ThemeTechnology, "122630": ThemeTechnology, "139660": ThemeTechnology,

	// Energy
	"XLE": ThemeEnergy, "USO": ThemeEnergy, "URA": ThemeEnergy, "TAN": ThemeEnergy,
	"ICLN": ThemeEnergy, "PBW": ThemeEnergy, "VDE": ThemeEnergy, "XOP": ThemeEnergy,
	"217770": ThemeEnergy,

	// Healthcare
	"XLV": ThemeHealthcare, "VHT": ThemeHealthcare, "XBI": ThemeHealthcare,
	"IHI": ThemeHealthcare, "277630": ThemeHealthcare, "305720": ThemeHealthcare,
	"139670": ThemeHealthcare,

	// Financials
	"XLF": ThemeFinancials, "VFH": ThemeFinancials, "KRE": ThemeFinancials,
	"KBE": ThemeFinancials, "091160": ThemeFinancials,

	// Consumer
	"XLY": ThemeConsumer, "XLP": ThemeConsumer, "VDC": ThemeConsumer, "XRT": ThemeConsumer,

	// Industrials
	"XLI": ThemeIndustrials, "VIS": ThemeIndustrials, "XHB": ThemeIndustrials,
	"ITB": ThemeIndustrials,

	// Utilities
	"XLU": ThemeUtilities,

	// Communications
	"XLC": ThemeCommunications,

	// Materials
	"XLB": ThemeMaterials, "XME": ThemeMaterials,

	// Real estate
	"VNQ": ThemeRealEstate, "SCHH": ThemeRealEstate, "IYR": ThemeRealEstate,
	"XLRE": ThemeRealEstate,

	// Broad market
	"SPY": ThemeBroadMarket, "DIA": ThemeBroadMarket, "IWM": ThemeBroadMarket,
	"VTI": ThemeBroadMarket, "VOO": ThemeBroadMarket, "VTV": ThemeBroadMarket,
	"VUG": ThemeBroadMarket, "VB": ThemeBroadMarket, "VBK": ThemeBroadMarket,
	"VBR": ThemeBroadMarket, "SCHD": ThemeBroadMarket,
	"069500": ThemeBroadMarket, "102110": ThemeBroadMarket, "114460": ThemeBroadMarket,

	// Bonds
	"AGG": ThemeBonds, "TLT": ThemeBonds, "BND": ThemeBonds, "IEF": ThemeBonds,
	"SHY": ThemeBonds, "LQD": ThemeBonds, "HYG": ThemeBonds, "TIP": ThemeBonds,
	"VCIT": ThemeBonds, "VCSH": ThemeBonds, "VGIT": ThemeBonds, "VGSH": ThemeBonds,
	"VTEB": ThemeBonds, "MUB": ThemeBonds, "SCHZ": ThemeBonds, "SCHO": ThemeBonds,
	"SCHR": ThemeBonds, "EMB": ThemeBonds,

	// Commodities
	"GLD": ThemeCommodities, "SLV": ThemeCommodities, "GDX": ThemeCommodities,
	"DBC": ThemeCommodities, "UNG": ThemeCommodities, "PPLT": ThemeCommodities,

	// International / emerging markets
	"VEA": ThemeInternational, "VWO": ThemeInternational, "EFA": ThemeInternational,
	"EEM": ThemeInternational, "IEFA": ThemeInternational, "VEU": ThemeInternational,
	"VSS": ThemeInternational, "VGK": ThemeInternational, "VPL": ThemeInternational,
	"VXUS": ThemeInternational, "IXUS": ThemeInternational, "VT": ThemeInternational,
	"ACWI": ThemeInternational, "URTH": ThemeInternational, "IOO": ThemeInternational,
	"EWY": ThemeInternational, "EWZ": ThemeInternational, "EWU": ThemeInternational,
	"EWH": ThemeInternational, "EWG": ThemeInternational, "EWC": ThemeInternational,
	"EWJ": ThemeInternational, "EWT": ThemeInternational,
}

// nameMap holds display names for well-known tickers; the rest get a
// "<ticker> ETF" placeholder.
var nameMap = map[string]string{
	"069500": "KODEX 200",
	"102110": "TIGER 200",
	"SPY":    "SPDR S&P 500 ETF",
	"QQQ":    "Invesco QQQ Trust",
	"VTI":    "Vanguard Total Stock Market ETF",
	"TLT":    "iShares 20+ Year Treasury Bond ETF",
	"GLD":    "SPDR Gold Shares",
	"SLV":    "iShares Silver Trust",
}

// userThemeCodes maps questionnaire theme-preference codes to themes.
// Code 1 means "no preference" and disables the theme signal.
var userThemeCodes = map[int]Theme{
	2: ThemeTechnology,
	3: ThemeEnergy,
	4: ThemeHealthcare,
}

// AllTickers returns the deduplicated, sorted universe.
func AllTickers() []string {
	seen := make(map[string]struct{}, len(krTickers)+len(usTickers))
	out := make([]string, 0, len(krTickers)+len(usTickers))
	for _, tk := range append(append([]string{}, krTickers...), usTickers...) {
		if _, ok := seen[tk]; ok {
			continue
		}
		seen[tk] = struct{}{}
		out = append(out, tk)
	}
	sort.Strings(out)
	return out
}

// MarketOf infers the market from the identifier shape: 6-digit numeric codes
// are domestic (KRX), everything else is treated as US-listed.
func MarketOf(ticker string) Market {
	if len(ticker) == 6 && isAllDigits(ticker) {
		return MarketKR
	}
	return MarketUS
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// ThemeOf returns the thematic category for a ticker, ThemeNone if unmapped.
func ThemeOf(ticker string) Theme {
	return themeMap[ticker]
}

// ThemeForCode maps a questionnaire theme-preference code to a theme.
// Unmapped codes (including 1, "no preference") return ThemeNone.
func ThemeForCode(code int) Theme {
	return userThemeCodes[code]
}

// NameOf returns a display name for the ticker.
func NameOf(ticker string) string {
	if name, ok := nameMap[ticker]; ok {
		return name
	}
	return ticker + " ETF"
}

// CategoryOf returns a coarse display category for the ticker, using the theme
// map first and symbol heuristics for unmapped tickers.
func CategoryOf(ticker string) string {
	switch ThemeOf(ticker) {
	case ThemeTechnology:
		return "Technology"
	case ThemeEnergy:
		return "Energy"
	case ThemeHealthcare:
		return "Healthcare"
	case ThemeBroadMarket:
		return "Broad Market"
	case ThemeBonds:
		return "Bonds"
	case ThemeCommodities:
		return "Commodities"
	case ThemeFinancials:
		return "Financials"
	case ThemeConsumer:
		return "Consumer"
	case ThemeIndustrials:
		return "Industrials"
	case ThemeUtilities:
		return "Utilities"
	case ThemeCommunications:
		return "Communications"
	case ThemeMaterials:
		return "Materials"
	case ThemeRealEstate:
		return "Real Estate"
	case ThemeInternational:
		return "International"
	}

	upper := strings.ToUpper(ticker)
	switch {
	case containsAny(upper, "200", "SPY", "VTI", "VOO"):
		return "Broad Market"
	case containsAny(upper, "QQQ", "XLK", "TECH"):
		return "Technology"
	case containsAny(upper, "TLT", "BND", "AGG"):
		return "Bonds"
	case containsAny(upper, "GLD", "SLV"):
		return "Commodities"
	default:
		return "Others"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// fundFacts holds AUM (millions) and expense ratio (%) for well-known funds.
var fundFacts = map[string][2]float64{
	"SPY": {45000, 0.09}, "VOO": {41000, 0.03}, "VTI": {38000, 0.03},
	"QQQ": {25000, 0.20}, "AGG": {9800, 0.03}, "TLT": {4800, 0.15},
	"GLD": {6100, 0.40}, "069500": {5600, 0.15}, "102110": {2300, 0.05},
}

// FundFacts returns (AUM in millions, expense ratio in percent) for a ticker.
// Unknown tickers get a deterministic placeholder derived from the ticker so
// that two runs over the same snapshot produce identical output.
func FundFacts(ticker string) (aum, expenseRatio float64) {
	if facts, ok := fundFacts[ticker]; ok {
		return facts[0], facts[1]
	}
	h := fnv.New32a()
	h.Write([]byte(ticker))
	v := h.Sum32()
	aum = 1000 + float64(v%49000)
	expenseRatio = 0.05 + float64((v/49000)%70)/100.0
	return aum, expenseRatio
}
