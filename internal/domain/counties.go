package domain

import (
	"sort"
	"strings"
)

// Region labels used to group California counties.
const (
	RegionBayArea       = "Bay Area"
	RegionSouthern      = "Southern California"
	RegionCentralValley = "Central Valley"
	RegionCentralCoast  = "Central Coast"
	RegionNorthern      = "Northern California"
	RegionSierra        = "Sierra"
)

// County is a reference entry for one California county.
type County struct {
	Name       string
	Lat        float64
	Lon        float64
	Population int
	Region     string
}

// StateCA is the only state the reference table covers.
const StateCA = "CA"

var counties = []County{
	{"Alameda", 37.6017, -121.7195, 1682353, RegionBayArea},
	{"Butte", 39.6670, -121.6008, 211632, RegionCentralValley},
	{"Contra Costa", 37.9161, -121.9018, 1161413, RegionBayArea},
	{"El Dorado", 38.7783, -120.5238, 193098, RegionSierra},
	{"Fresno", 36.7378, -119.7871, 1008654, RegionCentralValley},
	{"Humboldt", 40.7450, -123.8695, 135558, RegionNorthern},
	{"Imperial", 33.0394, -115.3500, 179702, RegionSouthern},
	{"Inyo", 36.5115, -117.4109, 19016, RegionSierra},
	{"Kern", 35.3733, -118.9614, 917673, RegionCentralValley},
	{"Kings", 36.0988, -119.8155, 153443, RegionCentralValley},
	{"Lake", 39.0995, -122.7533, 68766, RegionNorthern},
	{"Los Angeles", 34.0522, -118.2437, 9829544, RegionSouthern},
	{"Madera", 37.2183, -119.7627, 159410, RegionCentralValley},
	{"Marin", 38.0834, -122.7633, 262321, RegionBayArea},
	{"Mendocino", 39.4378, -123.3916, 91601, RegionNorthern},
	{"Merced", 37.1948, -120.7217, 286461, RegionCentralValley},
	{"Monterey", 36.6002, -121.8947, 439091, RegionCentralCoast},
	{"Napa", 38.5025, -122.2654, 138019, RegionBayArea},
	{"Nevada", 39.3013, -120.7689, 102241, RegionSierra},
	{"Orange", 33.7175, -117.8311, 3167809, RegionSouthern},
	{"Placer", 39.0916, -120.8039, 412300, RegionSierra},
	{"Riverside", 33.9533, -117.3962, 2470546, RegionSouthern},
	{"Sacramento", 38.5816, -121.4944, 1585055, RegionCentralValley},
	{"San Bernardino", 34.1083, -117.2898, 2181654, RegionSouthern},
	{"San Diego", 32.7157, -117.1611, 3286069, RegionSouthern},
	{"San Francisco", 37.7749, -122.4194, 815201, RegionBayArea},
	{"San Joaquin", 37.9577, -121.2908, 789410, RegionCentralValley},
	{"San Luis Obispo", 35.2828, -120.6596, 282165, RegionCentralCoast},
	{"San Mateo", 37.5630, -122.3255, 737888, RegionBayArea},
	{"Santa Barbara", 34.4208, -119.6982, 446527, RegionCentralCoast},
	{"Santa Clara", 37.3541, -121.9552, 1927470, RegionBayArea},
	{"Santa Cruz", 36.9741, -122.0308, 270861, RegionCentralCoast},
	{"Shasta", 40.7909, -122.0389, 182155, RegionNorthern},
	{"Solano", 38.2494, -121.9400, 453491, RegionBayArea},
	{"Sonoma", 38.5110, -122.9550, 488863, RegionBayArea},
	{"Stanislaus", 37.5091, -120.9876, 552999, RegionCentralValley},
	{"Tulare", 36.2077, -118.7815, 473117, RegionCentralValley},
	{"Ventura", 34.3705, -119.1391, 839784, RegionSouthern},
	{"Yolo", 38.7316, -121.9018, 216986, RegionCentralValley},
}

// Counties returns the reference table in alphabetical order. The slice is a
// copy; callers may modify it.
func Counties() []County {
	out := make([]County, len(counties))
	copy(out, counties)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupCounty finds a county by name, ignoring case and an optional
// " County" suffix.
func LookupCounty(name string) (County, bool) {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, " County")
	name = strings.TrimSuffix(name, " county")
	for _, c := range counties {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return County{}, false
}
