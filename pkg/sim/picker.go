package sim

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/sudorandom/birth-stream/pkg/geodata"
)

// PopulousShare is the probability that a pick goes to the allow-list
// instead of a uniformly random country.
const PopulousShare = 0.45

// Picker chooses event targets, biased toward an allow-list of populous
// countries.
type Picker struct {
	mu    sync.Mutex
	rng   *rand.Rand
	allow map[string]struct{}
	share float64
}

func NewPicker(allow []string, rng *rand.Rand) *Picker {
	set := make(map[string]struct{}, len(allow))
	for _, id := range allow {
		set[strings.ToUpper(id)] = struct{}{}
	}
	return &Picker{rng: rng, allow: set, share: PopulousShare}
}

// Pick returns a target from countries. With probability PopulousShare it
// takes the first country (in dataset order) whose ISO code is allow-listed,
// otherwise a uniformly random one. When the allow-list has no match it
// falls back to the first country. ok is false only for an empty list.
func (p *Picker) Pick(countries []geodata.Country) (geodata.Country, bool) {
	if len(countries) == 0 {
		return geodata.Country{}, false
	}

	p.mu.Lock()
	populous := p.rng.Float64() < p.share
	idx := p.rng.Intn(len(countries))
	p.mu.Unlock()

	if !populous {
		return countries[idx], true
	}
	for _, c := range countries {
		if c.ISO != "" && p.Allowed(c.ISO) {
			return c, true
		}
	}
	return countries[0], true
}

// Allowed reports whether id is on the allow-list.
func (p *Picker) Allowed(id string) bool {
	_, ok := p.allow[strings.ToUpper(id)]
	return ok
}
