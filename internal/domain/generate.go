package domain

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"
)

// Synthetic outage records span EAGLE-I's 2014–2023 historic window.
var (
	generateStart = time.Date(2014, time.January, 1, 0, 0, 0, 0, time.UTC)
	generateEnd   = time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC)
)

type weighted struct {
	label string
	p     float64
}

// Raw cause labels as they appear in EAGLE-I exports, with their share of events.
var causeMix = []weighted{
	{"Weather", 0.25},
	{"Equipment Failure", 0.20},
	{"Wildfire", 0.15},
	{"PSPS Shutoff", 0.12},
	{"Unknown", 0.10},
	{"Vegetation", 0.08},
	{"Animal", 0.05},
	{"Vehicle Accident", 0.05},
}

var sectorMix = []weighted{
	{SectorResidential, 0.62},
	{SectorCommercial, 0.28},
	{SectorIndustrial, 0.10},
}

// Population thresholds that shift the EJ indicator distributions.
const (
	ruralPopulation = 300000
	urbanPopulation = 1000000
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// GenerateOutageRecords returns n deterministic synthetic outage records.
// Counties are drawn in proportion to the square root of their population,
// start times are evenly spaced across 2014–2023, and duration and customers
// follow lognormal distributions.
func GenerateOutageRecords(seed uint64, n int) []RawOutageRecord {
	if n <= 0 {
		return nil
	}
	r := newRand(seed)
	refs := Counties()
	weights := make([]weighted, len(refs))
	for i, c := range refs {
		weights[i] = weighted{label: c.Name, p: math.Sqrt(float64(c.Population))}
	}

	spanSec := int64(generateEnd.Sub(generateStart) / time.Second)
	out := make([]RawOutageRecord, n)
	for i := range out {
		var offset time.Duration
		if n > 1 {
			offset = time.Duration(spanSec*int64(i)/int64(n-1)) * time.Second
		}
		county, _ := LookupCounty(pick(r, weights))
		out[i] = RawOutageRecord{
			EventID:      fmt.Sprintf("EAGLE-%06d", i),
			County:       county.Name,
			State:        StateCA,
			StartTime:    generateStart.Add(offset).Format(startTimeLayout),
			Duration:     strconv.FormatFloat(lognormal(r, 1, 1.2), 'f', 2, 64),
			MaxCustomers: strconv.Itoa(int(lognormal(r, 7, 1.5))),
			Cause:        pick(r, causeMix),
			Sector:       pick(r, sectorMix),
			Lat:          strconv.FormatFloat(county.Lat+uniform(r, -0.3, 0.3), 'f', 4, 64),
			Lon:          strconv.FormatFloat(county.Lon+uniform(r, -0.3, 0.3), 'f', 4, 64),
		}
	}
	return out
}

// GenerateEJIndicators returns deterministic synthetic indicators for every
// reference county. Rural counties (under 300,000 people) carry lower
// pollution and higher fire risk; urban counties (over 1,000,000) carry
// higher particulate and ozone levels.
func GenerateEJIndicators(seed uint64) []EJIndicators {
	r := newRand(seed)
	refs := Counties()
	out := make([]EJIndicators, 0, len(refs))
	for _, c := range refs {
		rural := c.Population < ruralPopulation
		urban := c.Population > urbanPopulation

		in := EJIndicators{County: c.Name, Population: c.Population}
		if rural {
			in.PollutionBurden = beta(r, 2, 5) * 100
		} else {
			in.PollutionBurden = beta(r, 5, 3) * 100
		}
		in.PM25 = uniform(r, 5, 20)
		in.Ozone = uniform(r, 30, 70)
		if urban {
			in.PM25 += 8
			in.Ozone += 10
		}
		if rural {
			in.DieselPM = beta(r, 2, 4) * 100
			in.PovertyRate = beta(r, 3, 6) * 100
		} else {
			in.DieselPM = beta(r, 5, 3) * 100
			in.PovertyRate = beta(r, 2, 8) * 100
		}
		in.Unemployment = uniform(r, 3, 15)
		in.Uninsured = beta(r, 2, 8) * 100
		in.Age65Plus = uniform(r, 10, 25)
		in.Disability = uniform(r, 10, 20)
		in.LimitedEnglish = beta(r, 2, 8) * 100
		if rural {
			in.NoVehicle = beta(r, 2, 10) * 100
		} else {
			in.NoVehicle = beta(r, 4, 8) * 100
		}

		in.AsthmaRate = uniform(r, 5, 15)
		if in.PollutionBurden > 50 {
			in.AsthmaRate += 5
		}
		in.Cardiovascular = uniform(r, 3, 12)
		in.LowBirthWeight = uniform(r, 4, 10)

		if rural {
			in.FireRisk = beta(r, 3, 3) * 100
		} else {
			in.FireRisk = beta(r, 2, 6) * 100
		}
		out = append(out, in)
	}
	return out
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func lognormal(r *rand.Rand, mu, sigma float64) float64 {
	return math.Exp(mu + sigma*r.NormFloat64())
}

// gamma draws from Gamma(k, 1) for integer shape k as a sum of exponentials.
func gamma(r *rand.Rand, k int) float64 {
	var sum float64
	for range k {
		sum += r.ExpFloat64()
	}
	return sum
}

func beta(r *rand.Rand, a, b int) float64 {
	x := gamma(r, a)
	y := gamma(r, b)
	return x / (x + y)
}

// pick draws a label with probability proportional to its weight.
func pick(r *rand.Rand, choices []weighted) string {
	var total float64
	for _, c := range choices {
		total += c.p
	}
	target := r.Float64() * total
	for _, c := range choices {
		target -= c.p
		if target < 0 {
			return c.label
		}
	}
	return choices[len(choices)-1].label
}
