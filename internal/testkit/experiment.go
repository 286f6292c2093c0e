package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"variatio/domain/experiment"
)

// ExperimentConfig configures the experiment fixture generator
type ExperimentConfig struct {
	UserCount int       `json:"user_count"`
	Arms      []string  `json:"arms"`
	Start     time.Time `json:"start"`
	// AllocationSpan is the window over which users get allocated.
	AllocationSpan time.Duration `json:"allocation_span"`
	PretestSpan    time.Duration `json:"pretest_span"`
	IntestSpan     time.Duration `json:"intest_span"`
	// PurchaseRate is the mean purchases per user per day for a baseline user.
	PurchaseRate float64 `json:"purchase_rate"`
	LoginRate    float64 `json:"login_rate"`
	// Lift multiplies the intest purchase rate per arm (missing arm = 1).
	Lift map[string]float64 `json:"lift"`
	Seed int64              `json:"seed"`
}

// DefaultExperimentConfig returns a two-arm experiment with 100 users
func DefaultExperimentConfig() ExperimentConfig {
	return ExperimentConfig{
		UserCount:      100,
		Arms:           []string{"A", "B"},
		Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		AllocationSpan: 7 * 24 * time.Hour,
		PretestSpan:    14 * 24 * time.Hour,
		IntestSpan:     14 * 24 * time.Hour,
		PurchaseRate:   0.15,
		LoginRate:      0.8,
		Lift:           map[string]float64{},
		Seed:           42,
	}
}

// ExperimentData is a generated set of input tables
type ExperimentData struct {
	Events      experiment.EventTable
	Allocations experiment.AllocationTable
	Properties  *experiment.PropertyTable
}

// ExperimentGenerator builds deterministic experiment tables in which user
// behavior before allocation predicts behavior after it
type ExperimentGenerator struct {
	config ExperimentConfig
	rng    *rand.Rand
}

// NewExperimentGenerator creates a new generator
func NewExperimentGenerator(config ExperimentConfig) *ExperimentGenerator {
	return &ExperimentGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

var (
	countries   = []string{"US", "UK", "DE", "FR", "CA", "JP"}
	devices     = []string{"Mobile", "Desktop", "Tablet"}
	memberships = []string{"Free", "Premium"}
)

// Generate produces events, allocations and user properties
func (g *ExperimentGenerator) Generate() ExperimentData {
	data := ExperimentData{
		Events: experiment.EventTable{
			Columns: experiment.Columns{
				{Name: "purchase_value", Kind: experiment.KindNumeric},
				{Name: "platform", Kind: experiment.KindCategorical},
			},
		},
		Properties: &experiment.PropertyTable{
			Columns: experiment.Columns{
				{Name: "age", Kind: experiment.KindNumeric},
				{Name: "country", Kind: experiment.KindCategorical},
				{Name: "device_type", Kind: experiment.KindCategorical},
				{Name: "membership_status", Kind: experiment.KindCategorical},
			},
		},
	}

	for i := 0; i < g.config.UserCount; i++ {
		userID := fmt.Sprintf("user_%04d", i+1)
		arm := g.config.Arms[g.rng.Intn(len(g.config.Arms))]
		allocatedAt := g.config.Start.Add(time.Duration(g.rng.Int63n(int64(g.config.AllocationSpan) + 1)))

		data.Allocations.Rows = append(data.Allocations.Rows, experiment.Allocation{
			Timestamp: allocatedAt,
			UserID:    userID,
			Arm:       arm,
		})

		props := g.userProperties()
		data.Properties.Rows = append(data.Properties.Rows, experiment.UserProperties{UserID: userID, Attributes: props})

		// Propensity is shared by both windows so pretest behavior predicts intest behavior.
		propensity := math.Exp(g.rng.NormFloat64() * 0.7)
		if props["membership_status"].Cat == "Premium" {
			propensity *= 2
		}
		spend := 50 + 250*g.rng.Float64()

		lift := 1.0
		if l, ok := g.config.Lift[arm]; ok {
			lift = l
		}

		pretestStart := allocatedAt.Add(-g.config.PretestSpan)
		data.Events.Rows = append(data.Events.Rows, g.userEvents(userID, pretestStart, g.config.PretestSpan, propensity, spend)...)
		data.Events.Rows = append(data.Events.Rows, g.userEvents(userID, allocatedAt, g.config.IntestSpan, propensity*lift, spend)...)
	}

	return data
}

func (g *ExperimentGenerator) userProperties() experiment.Attributes {
	membership := memberships[0]
	if g.rng.Float64() < 0.3 {
		membership = memberships[1]
	}
	return experiment.Attributes{
		"age":               experiment.Numeric(float64(18 + g.rng.Intn(53))),
		"country":           experiment.Categorical(countries[g.rng.Intn(len(countries))]),
		"device_type":       experiment.Categorical(devices[g.rng.Intn(len(devices))]),
		"membership_status": experiment.Categorical(membership),
	}
}

func (g *ExperimentGenerator) userEvents(userID string, from time.Time, span time.Duration, propensity, spend float64) []experiment.Event {
	days := span.Hours() / 24
	var events []experiment.Event

	logins := g.poisson(g.config.LoginRate * days)
	for i := 0; i < logins; i++ {
		events = append(events, experiment.Event{
			Timestamp:  g.randomTime(from, span),
			UserID:     userID,
			Name:       "login",
			Attributes: experiment.Attributes{"platform": experiment.Categorical(devices[g.rng.Intn(len(devices))])},
		})
	}

	purchases := g.poisson(g.config.PurchaseRate * propensity * days)
	for i := 0; i < purchases; i++ {
		value := math.Round(spend * (0.8 + 0.4*g.rng.Float64()))
		events = append(events, experiment.Event{
			Timestamp:  g.randomTime(from, span),
			UserID:     userID,
			Name:       "purchase",
			Attributes: experiment.Attributes{"purchase_value": experiment.Numeric(value)},
		})
	}
	return events
}

// randomTime picks an instant in [from, from+span)
func (g *ExperimentGenerator) randomTime(from time.Time, span time.Duration) time.Time {
	if span <= 0 {
		return from
	}
	return from.Add(time.Duration(g.rng.Int63n(int64(span))))
}

// poisson draws from a Poisson distribution (Knuth's method; fine for small means)
func (g *ExperimentGenerator) poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	limit := math.Exp(-mean)
	k := 0
	p := g.rng.Float64()
	for p > limit {
		k++
		p *= g.rng.Float64()
	}
	return k
}
