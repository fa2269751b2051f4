package config

import "fmt"

// Region identifies an administrative ward or city processed by the pipeline.
// Name is the value stored on transactions and listings; Code is the
// municipality code used by the transaction API; Prefecture and AreaCode
// address the listing source.
type Region struct {
	Name       string
	Code       string
	Prefecture string
	AreaCode   string
}

// KnownRegions lists every region the collaborators can be queried for.
var KnownRegions = []Region{
	{Name: "中央区", Code: "13102", Prefecture: "tokyo", AreaCode: "sc_chuo"},
	{Name: "台東区", Code: "13106", Prefecture: "tokyo", AreaCode: "sc_taito"},
	{Name: "墨田区", Code: "13107", Prefecture: "tokyo", AreaCode: "sc_sumida"},
	{Name: "江東区", Code: "13108", Prefecture: "tokyo", AreaCode: "sc_koto"},
	{Name: "品川区", Code: "13109", Prefecture: "tokyo", AreaCode: "sc_shinagawa"},
	{Name: "目黒区", Code: "13110", Prefecture: "tokyo", AreaCode: "sc_meguro"},
	{Name: "大田区", Code: "13111", Prefecture: "tokyo", AreaCode: "sc_ota"},
	{Name: "世田谷区", Code: "13112", Prefecture: "tokyo", AreaCode: "sc_setagaya"},
	{Name: "荒川区", Code: "13118", Prefecture: "tokyo", AreaCode: "sc_arakawa"},
	{Name: "足立区", Code: "13121", Prefecture: "tokyo", AreaCode: "sc_adachi"},
	{Name: "葛飾区", Code: "13122", Prefecture: "tokyo", AreaCode: "sc_katsushika"},
	{Name: "江戸川区", Code: "13123", Prefecture: "tokyo", AreaCode: "sc_edogawa"},
	{Name: "市川市", Code: "12203", Prefecture: "chiba", AreaCode: "sc_ichikawa"},
	{Name: "松戸市", Code: "12207", Prefecture: "chiba", AreaCode: "sc_matsudo"},
	{Name: "浦安市", Code: "12227", Prefecture: "chiba", AreaCode: "sc_urayasu"},
}

// ResolveRegions maps region names or municipality codes to known regions.
// An empty selection means every known region. Duplicates are dropped.
func ResolveRegions(selection []string) ([]Region, error) {
	if len(selection) == 0 {
		out := make([]Region, len(KnownRegions))
		copy(out, KnownRegions)
		return out, nil
	}

	seen := make(map[string]bool, len(selection))
	out := make([]Region, 0, len(selection))
	for _, key := range selection {
		region, ok := LookupRegion(key)
		if !ok {
			return nil, fmt.Errorf("unknown target region %q", key)
		}
		if seen[region.Code] {
			continue
		}
		seen[region.Code] = true
		out = append(out, region)
	}
	return out, nil
}

// LookupRegion finds a known region by name or municipality code.
func LookupRegion(key string) (Region, bool) {
	for _, region := range KnownRegions {
		if region.Name == key || region.Code == key {
			return region, true
		}
	}
	return Region{}, false
}
