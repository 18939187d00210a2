// Package domain models California power-outage records and county-level
// environmental-justice (EJ) indicators, and the Record Tables built from them.
//
// # Data Sources
//
// Outage records follow the DOE EAGLE-I historic export (2014–2023): one row
// per outage with county, start time, duration, peak customers out, and cause.
// An upstream collector publishes each row as flat JSON to the Kafka source
// topic (see [RawOutageRecord]). When no collector is running, the service
// seeds itself with [GenerateOutageRecords].
//
// EJ indicators are synthetic stand-ins for CalEnviroScreen 4.0 (pollution),
// the CDC Social Vulnerability Index, state health burden data, and CAL FIRE
// hazard zones. They are generated per reference county by
// [GenerateEJIndicators] and treated downstream as opaque numbers.
//
// # Outage Conventions
//
// Start time format:
//
//	"01/02/2006 15:04" (EAGLE-I), with RFC 3339 also accepted.
//	Missing or unparseable times fall back to the Kafka message timestamp.
//
// Cause normalization (case-insensitive substring, first match wins):
//
//	psps, shutoff          → psps
//	weather, storm, wind   → weather
//	equipment              → equipment
//	vegetation, tree       → vegetation
//	anything else          → other
//
// A "major event" under the DOE OE-417 reporting rule affects at least
// 50,000 customers; see [DOEThresholdCustomers].
//
// Seasons are meteorological: Winter Dec–Feb, Spring Mar–May, Summer Jun–Aug,
// Fall Sep–Nov.
//
// # Record Tables
//
// A [Table] is an ordered list of rows keyed by county. The outage table is
// produced by [CountyAggregator], the EJ table by [EJTable], and the merged
// table by [Merge]. Tables are treated as immutable values once built:
// filtering and sorting return new tables that share row maps with the source.
//
// # Scores
//
//	CES        = clamp((pollution*0.3 + pm25*2 + ozone*0.2 + diesel*0.15) / 2, 0, 100)
//	SVI        = weighted poverty, unemployment, uninsured, disability,
//	             age 65+, no vehicle, limited English; clamped to [0, 1]
//	health     = asthma*3 + cardiovascular*4 + low_birth_weight*3
//	composite  = clamp(ces/100*0.35 + svi*0.35 + health/100*0.2 + fire/100*0.1, 0, 1)
//
// Risk maps bucket a metric into quartiles (Low, Moderate, High, Very High)
// using linearly interpolated percentiles; see [BuildRiskMap].
//
// # ID Generation
//
// Outage IDs are deterministic SHA-256 hashes of county|state|start|cause|customers
// so replays of the same record collapse to one ID. See [generateID].
package domain
