package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"pvqc/domain/run"
)

// SeriesGenerator produces synthetic measurement series with reproducible
// noise. The same seed always yields the same series, so tests can assert
// exact pipeline outcomes.
type SeriesGenerator struct {
	rng *rand.Rand
}

// NewSeriesGenerator creates a generator from a seed
func NewSeriesGenerator(seed int64) *SeriesGenerator {
	return &SeriesGenerator{rng: rand.New(rand.NewSource(seed))}
}

// IAMSweep synthesizes an angular sweep from the single-parameter incidence
// model: 17 points from 0 to 80 degrees in 5 degree steps, gaussian noise on
// the transmission ratio, irradiance held near 1000 W/m2.
func (g *SeriesGenerator) IAMSweep(b0, noise float64) run.MeasurementSeries {
	points := make([]run.MeasurementPoint, 0, 17)
	for i := 0; i <= 16; i++ {
		theta := float64(i) * 5
		iam := 1 - b0*(1/math.Cos(theta*math.Pi/180)-1)
		points = append(points, run.MeasurementPoint{
			Independent: theta,
			Readings: map[string]float64{
				"relative_transmission": iam + g.rng.NormFloat64()*noise,
				"irradiance":            1000 + g.rng.NormFloat64()*5,
			},
		})
	}
	return run.NewMeasurementSeries("iam_sweep", points)
}

// LeTIDSeries synthesizes a power degradation sequence that settles toward
// its stabilized level: p(t) = p0 * (1 - loss/100 * (1 - exp(-t/tau))).
// IV readings are kept mutually consistent (pmax = vmp * imp) and module
// temperature is held at 75 C within the stability band.
func (g *SeriesGenerator) LeTIDSeries(initialPmax, lossPct, tauHours, stepHours float64, n int) run.MeasurementSeries {
	const vmp = 40.1
	points := make([]run.MeasurementPoint, 0, n)
	for i := 0; i < n; i++ {
		hours := float64(i) * stepHours
		pmax := initialPmax * (1 - lossPct/100*(1-math.Exp(-hours/tauHours)))
		points = append(points, run.MeasurementPoint{
			Independent: hours,
			Readings: map[string]float64{
				"pmax":        pmax,
				"vmp":         vmp,
				"imp":         pmax / vmp,
				"voc":         48.2,
				"isc":         9.8,
				"module_temp": 75 + g.rng.NormFloat64()*0.3,
			},
		})
	}
	return run.NewMeasurementSeries(fmt.Sprintf("letid_%dh", int(float64(n-1)*stepHours)), points)
}

// BifacialSeries synthesizes front/rear power pairs across ascending
// irradiance levels with the given bifaciality ratio
func (g *SeriesGenerator) BifacialSeries(frontSTC, bifaciality float64, levels ...float64) run.MeasurementSeries {
	points := make([]run.MeasurementPoint, 0, len(levels))
	for _, irradiance := range levels {
		front := frontSTC*irradiance/1000 + g.rng.NormFloat64()*0.2
		points = append(points, run.MeasurementPoint{
			Independent: irradiance,
			Readings: map[string]float64{
				"front_pmax": front,
				"rear_pmax":  bifaciality*front + g.rng.NormFloat64()*0.1,
			},
		})
	}
	return run.NewMeasurementSeries("bifacial_pairs", points)
}
