package domain

// EJIndicators holds the synthetic environmental-justice inputs for one
// county. Percent-style fields are on a 0–100 scale.
type EJIndicators struct {
	County     string
	Population int

	// CalEnviroScreen-style pollution indicators.
	PollutionBurden float64
	PM25            float64
	Ozone           float64
	DieselPM        float64

	// Social vulnerability components.
	PovertyRate    float64
	Unemployment   float64
	Uninsured      float64
	Disability     float64
	Age65Plus      float64
	NoVehicle      float64
	LimitedEnglish float64

	// Health indicators.
	AsthmaRate     float64
	Cardiovascular float64
	LowBirthWeight float64

	FireRisk float64
}

// EJColumns is the schema of the EJ table.
var EJColumns = []string{
	ColCounty, ColRegion, ColPopulation, ColLatitude, ColLongitude,
	ColCES, ColPollutionBurden, ColPM25, ColOzone,
	ColSVI, ColPovertyRate, ColHealthBurden, ColFireRisk, ColCompositeEJ,
}

// CESScore is the CalEnviroScreen-style pollution score, clamped to [0, 100].
func CESScore(in EJIndicators) float64 {
	return clamp((in.PollutionBurden*0.3+in.PM25*2+in.Ozone*0.2+in.DieselPM*0.15)/2, 0, 100)
}

// SVIScore is the social vulnerability index, clamped to [0, 1].
func SVIScore(in EJIndicators) float64 {
	return clamp(in.PovertyRate/100*0.25+
		in.Unemployment/20*0.15+
		in.Uninsured/100*0.15+
		in.Disability/30*0.1+
		in.Age65Plus/30*0.1+
		in.NoVehicle/100*0.1+
		in.LimitedEnglish/100*0.15, 0, 1)
}

// HealthBurden weights asthma, cardiovascular, and low-birth-weight rates.
func HealthBurden(in EJIndicators) float64 {
	return in.AsthmaRate*3 + in.Cardiovascular*4 + in.LowBirthWeight*3
}

// CompositeEJ combines the pollution, vulnerability, health, and fire
// dimensions into a single 0–1 burden score.
func CompositeEJ(ces, svi, health, fire float64) float64 {
	return clamp(ces/100*0.35+svi*0.35+health/100*0.2+fire/100*0.1, 0, 1)
}

// EJTable scores each county and renders the EJ table in input order.
// Scores are rounded as published: three places for SVI and the composite,
// two for everything else.
func EJTable(indicators []EJIndicators) Table {
	rows := make([]Row, 0, len(indicators))
	for _, in := range indicators {
		ces := CESScore(in)
		svi := SVIScore(in)
		health := HealthBurden(in)

		r := NewRow()
		r.Text[ColCounty] = in.County
		r.Values[ColPopulation] = float64(in.Population)
		if c, ok := LookupCounty(in.County); ok {
			r.Text[ColRegion] = c.Region
			r.Values[ColLatitude] = c.Lat
			r.Values[ColLongitude] = c.Lon
		} else {
			r.Text[ColRegion] = ""
		}
		r.Values[ColCES] = round(ces, 2)
		r.Values[ColPollutionBurden] = round(in.PollutionBurden, 2)
		r.Values[ColPM25] = round(in.PM25, 2)
		r.Values[ColOzone] = round(in.Ozone, 2)
		r.Values[ColSVI] = round(svi, 3)
		r.Values[ColPovertyRate] = round(in.PovertyRate, 2)
		r.Values[ColHealthBurden] = round(health, 2)
		r.Values[ColFireRisk] = round(in.FireRisk, 2)
		r.Values[ColCompositeEJ] = round(CompositeEJ(ces, svi, health, in.FireRisk), 3)
		rows = append(rows, r)
	}
	return Table{Key: ColCounty, Columns: EJColumns, Rows: rows}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
