// Package frequency generates draws weighted by how often numbers came up
// historically: mostly hot numbers plus one cold one.
package frequency

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/Alias1177/LottoPredictor/models"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minNumber = 1
	maxNumber = 49
)

// Frequency is how often a number was drawn
type Frequency struct {
	Number int
	Count  int
}

// Frequencies counts numbers, most frequent first. Ties keep ascending
// number order.
func Frequencies(numbers []int) []Frequency {
	counts := make(map[int]int)
	for _, n := range numbers {
		counts[n]++
	}
	freqs := make([]Frequency, 0, len(counts))
	for n, c := range counts {
		freqs = append(freqs, Frequency{Number: n, Count: c})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return freqs[i].Number < freqs[j].Number
	})
	return freqs
}

// Hot returns the n most frequent numbers
func Hot(freqs []Frequency, n int) []Frequency {
	return freqs[:min(n, len(freqs))]
}

// Cold returns the n least frequent numbers, least frequent first
func Cold(freqs []Frequency, n int) []Frequency {
	asc := append([]Frequency(nil), freqs...)
	sort.SliceStable(asc, func(i, j int) bool { return asc[i].Count < asc[j].Count })
	return asc[:min(n, len(asc))]
}

// Options configures a Generator
type Options struct {
	Size      int // numbers per draw
	PoolSize  int // hot and cold pool size
	HotPicks  int
	ColdPicks int
}

// DefaultOptions picks 5 of the top 10 and 1 of the bottom 10, then fills to 7
func DefaultOptions() Options {
	return Options{Size: 7, PoolSize: 10, HotPicks: 5, ColdPicks: 1}
}

// Generator produces frequency-weighted draws. It is not safe for concurrent use.
type Generator struct {
	opts   Options
	rng    *rand.Rand
	logger zerolog.Logger
}

func NewGenerator(opts Options, rng *rand.Rand) (*Generator, error) {
	if opts.Size < 1 || opts.Size > maxNumber-minNumber+1 {
		return nil, fmt.Errorf("draw size %d not in [1,%d]", opts.Size, maxNumber-minNumber+1)
	}
	if opts.HotPicks < 0 || opts.ColdPicks < 0 || opts.PoolSize < 0 {
		return nil, fmt.Errorf("negative pick counts")
	}
	return &Generator{
		opts:   opts,
		rng:    rng,
		logger: log.With().Str("component", "frequency").Logger(),
	}, nil
}

// Generate builds one draw from the historical numbers
func (g *Generator) Generate(history []int) models.PredictedDraw {
	freqs := Frequencies(history)
	g.describe(freqs)

	picked := g.weighted(Hot(freqs, g.opts.PoolSize), g.opts.HotPicks)
	picked = append(picked, g.weighted(Cold(freqs, g.opts.PoolSize), g.opts.ColdPicks)...)

	// top up, clamp, dedupe, top up again
	picked = g.fill(picked)
	seen := make(map[int]bool, len(picked))
	unique := picked[:0]
	for _, n := range picked {
		n = max(minNumber, min(maxNumber, n))
		if !seen[n] {
			seen[n] = true
			unique = append(unique, n)
		}
	}
	numbers := g.fill(unique)
	if len(numbers) > g.opts.Size {
		numbers = numbers[:g.opts.Size]
	}

	sort.Ints(numbers)
	return models.PredictedDraw{
		Numbers:     numbers,
		Source:      models.SourceFrequency,
		GeneratedAt: time.Now(),
	}
}

// weighted draws count distinct numbers from pool with probability
// proportional to their frequency
func (g *Generator) weighted(pool []Frequency, count int) []int {
	count = min(count, len(pool))
	if count == 0 {
		return nil
	}

	weights := make(stats.Float64Data, len(pool))
	for i, f := range pool {
		weights[i] = float64(f.Count)
	}
	total, err := stats.Sum(weights)
	if err != nil || total <= 0 {
		return nil
	}

	selected := make([]int, 0, count)
	taken := make(map[int]bool, count)
	for len(selected) < count {
		target := g.rng.Float64() * total
		cumulative := 0.0
		for _, f := range pool {
			cumulative += float64(f.Count)
			// an already taken number passes the draw on to the next one
			if cumulative >= target && !taken[f.Number] {
				selected = append(selected, f.Number)
				taken[f.Number] = true
				break
			}
		}
	}
	return selected
}

// fill appends uniform random numbers not yet present until Size is reached
func (g *Generator) fill(numbers []int) []int {
	present := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		present[n] = true
	}
	for len(numbers) < g.opts.Size {
		n := g.rng.Intn(maxNumber-minNumber+1) + minNumber
		if !present[n] {
			present[n] = true
			numbers = append(numbers, n)
		}
	}
	return numbers
}

func (g *Generator) describe(freqs []Frequency) {
	if len(freqs) == 0 {
		g.logger.Warn().Msg("No historical numbers, generating uniformly")
		return
	}
	counts := make(stats.Float64Data, len(freqs))
	for i, f := range freqs {
		counts[i] = float64(f.Count)
	}
	mean, _ := stats.Mean(counts)
	sd, _ := stats.StandardDeviation(counts)
	g.logger.Debug().
		Int("distinct", len(freqs)).
		Float64("mean_count", mean).
		Float64("stddev_count", sd).
		Int("hottest", freqs[0].Number).
		Int("coldest", freqs[len(freqs)-1].Number).
		Msg("Number frequencies")
}
