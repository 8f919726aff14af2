package trends

import (
	"math"
	"math/rand"
	"time"

	"github.com/grailmeter/grail-meter/apimodels"
)

// Synthetic generates one interest point per month for the trailing year,
// used when the trend service has nothing for any candidate term. The curve
// follows a seasonal sine around a random base with uniform noise, clamped
// to the 0-100 interest scale, and every point is tagged Synthetic so the
// client can tell it apart from real data.
func Synthetic(now time.Time) []apimodels.TrendPoint {
	rng := rand.New(rand.NewSource(now.UnixNano()))
	base := float64(40 + rng.Intn(21))

	start := now.AddDate(-1, 0, 0)
	points := make([]apimodels.TrendPoint, 0, 13)

	for cur := start; !cur.After(now); cur = cur.AddDate(0, 1, 0) {
		season := 1 + 0.3*math.Sin(2*math.Pi*float64(cur.Month()-1)/12)
		noise := 0.8 + 0.4*rng.Float64()

		volume := int(base * season * noise)
		if volume < 0 {
			volume = 0
		}
		if volume > 100 {
			volume = 100
		}

		points = append(points, apimodels.TrendPoint{
			Date:      cur.Format("2006-01-02"),
			Volume:    volume,
			Synthetic: true,
		})
	}

	return points
}
