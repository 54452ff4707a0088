// Package repair turns raw regression output into a valid lottery draw:
// unique, in range, exactly Target numbers, sorted ascending.
package repair

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
)

// leadingOne is the value the leading-one rule rejects
const leadingOne = 1

var ErrInvalidTarget = errors.New("invalid draw size")

// Check selects which element the leading-one rule inspects
type Check int

const (
	// CheckMinimum inspects the numeric minimum of the collection
	CheckMinimum Check = iota
	// CheckFirstInserted inspects the first element in insertion order
	// (deduplicated inputs first, random fills after)
	CheckFirstInserted
)

func (c Check) String() string {
	if c == CheckFirstInserted {
		return "first"
	}
	return "minimum"
}

// ParseCheck accepts "minimum" or "first"
func ParseCheck(s string) (Check, error) {
	switch strings.ToLower(s) {
	case "", "minimum", "min":
		return CheckMinimum, nil
	case "first":
		return CheckFirstInserted, nil
	}
	return CheckMinimum, fmt.Errorf("unknown leading-one check %q", s)
}

// Options configures one repair call site
type Options struct {
	Target     int // numbers in the repaired draw
	Min        int // lowest valid number, also the fill lower bound
	Max        int // highest valid number
	ReplaceMin int // lower bound for the leading-one replacement
	Check      Check
}

// TrainingOptions are used when inspecting test-set predictions after training
func TrainingOptions() Options {
	return Options{Target: 6, Min: 1, Max: 49, ReplaceMin: 1}
}

// PredictionOptions are used for the next-draw prediction
func PredictionOptions() Options {
	return Options{Target: 7, Min: 1, Max: 49, ReplaceMin: 2}
}

// Validate rejects configurations that cannot always be satisfied
func (o Options) Validate() error {
	if o.Min > o.Max {
		return fmt.Errorf("%w: range [%d,%d] is empty", ErrInvalidTarget, o.Min, o.Max)
	}
	universe := o.Max - o.Min + 1
	if o.Target < 1 || o.Target > universe {
		return fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidTarget, o.Target, universe)
	}
	if o.ReplaceMin < o.Min || o.ReplaceMin > o.Max {
		return fmt.Errorf("%w: replacement bound %d outside [%d,%d]", ErrInvalidTarget, o.ReplaceMin, o.Min, o.Max)
	}

	// worst case: every other member already sits inside the replacement range
	free := o.Max - o.ReplaceMin + 1 - (o.Target - 1)
	if o.ReplaceMin <= leadingOne {
		free--
	}
	if free < 1 {
		return fmt.Errorf("%w: %d leaves no replacement for a leading %d in [%d,%d]",
			ErrInvalidTarget, o.Target, leadingOne, o.ReplaceMin, o.Max)
	}
	return nil
}

// Repairer applies the repair procedure. It is not safe for concurrent use.
type Repairer struct {
	opts Options
	rng  *rand.Rand
}

// New validates opts and creates a Repairer drawing from rng
func New(opts Options, rng *rand.Rand) (*Repairer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("repair: nil random source")
	}
	return &Repairer{opts: opts, rng: rng}, nil
}

// Options returns the repairer configuration
func (r *Repairer) Options() Options {
	return r.opts
}

// Repair rounds, clips, dedupes, fills, applies the leading-one rule and
// sorts. NaN inputs are dropped; infinities clip to the bounds.
func (r *Repairer) Repair(raw []float64) []int {
	seen := make(map[int]bool, r.opts.Target)
	numbers := make([]int, 0, r.opts.Target)

	for _, v := range raw {
		if math.IsNaN(v) {
			continue
		}
		n := r.clip(math.RoundToEven(v))
		if seen[n] {
			continue
		}
		seen[n] = true
		numbers = append(numbers, n)
	}

	for len(numbers) < r.opts.Target {
		n := r.pick(r.opts.Min, seen)
		seen[n] = true
		numbers = append(numbers, n)
	}

	if len(numbers) > r.opts.Target {
		for _, n := range numbers[r.opts.Target:] {
			delete(seen, n)
		}
		numbers = numbers[:r.opts.Target]
	}

	if i := r.inspected(numbers); numbers[i] == leadingOne {
		n := r.pick(r.opts.ReplaceMin, seen)
		delete(seen, numbers[i])
		seen[n] = true
		numbers[i] = n
	}

	sort.Ints(numbers)
	return numbers
}

func (r *Repairer) clip(v float64) int {
	if v < float64(r.opts.Min) {
		return r.opts.Min
	}
	if v > float64(r.opts.Max) {
		return r.opts.Max
	}
	return int(v)
}

func (r *Repairer) inspected(numbers []int) int {
	if r.opts.Check == CheckFirstInserted {
		return 0
	}
	idx := 0
	for i, n := range numbers {
		if n < numbers[idx] {
			idx = i
		}
	}
	return idx
}

// pick draws uniformly from [lo, Max] excluding taken values. This has the
// distribution of redrawing until a free value comes up, without the loop.
func (r *Repairer) pick(lo int, taken map[int]bool) int {
	free := make([]int, 0, r.opts.Max-lo+1)
	for n := lo; n <= r.opts.Max; n++ {
		if !taken[n] {
			free = append(free, n)
		}
	}
	return free[r.rng.Intn(len(free))]
}
