package cost

// Rates are USD per million tokens for each token class.
type Rates struct {
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	CacheRead  float64 `json:"cacheRead"`
	CacheWrite float64 `json:"cacheWrite"`
}

// Usage is the token count of one usage event.
type Usage struct {
	Input      int64 `json:"input"`
	Output     int64 `json:"output"`
	CacheRead  int64 `json:"cacheRead"`
	CacheWrite int64 `json:"cacheWrite"`
}

// DefaultRates cover models missing from the table.
var DefaultRates = Rates{Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75}

var builtinRates = map[string]Rates{
	"claude-opus-4-6":            {Input: 15, Output: 75, CacheRead: 1.5, CacheWrite: 18.75},
	"claude-sonnet-4-6":          {Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75},
	"claude-3-5-sonnet-20241022": {Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75},
	"claude-3-opus-20240229":     {Input: 15, Output: 75, CacheRead: 1.5, CacheWrite: 18.75},
	"gpt-4o":                     {Input: 2.5, Output: 10, CacheRead: 1.25, CacheWrite: 2.5},
	"gpt-5.2":                    {Input: 5, Output: 20, CacheRead: 2.5, CacheWrite: 5},
}

// Pricing is an immutable model -> rates lookup with a default fallback.
type Pricing struct {
	rates    map[string]Rates
	fallback Rates
}

// NewPricing returns the built-in table with overrides merged on top.
func NewPricing(overrides map[string]Rates) *Pricing {
	rates := make(map[string]Rates, len(builtinRates)+len(overrides))
	for k, v := range builtinRates {
		rates[k] = v
	}
	for k, v := range overrides {
		rates[k] = v
	}
	return &Pricing{rates: rates, fallback: DefaultRates}
}

// Lookup returns the rates for model, or the default rates when unknown.
func (p *Pricing) Lookup(model string) Rates {
	if r, ok := p.rates[model]; ok {
		return r
	}
	return p.fallback
}

// Cost returns the USD cost of u billed at model's rates.
func (p *Pricing) Cost(model string, u Usage) float64 {
	r := p.Lookup(model)
	return (float64(u.Input)*r.Input +
		float64(u.Output)*r.Output +
		float64(u.CacheRead)*r.CacheRead +
		float64(u.CacheWrite)*r.CacheWrite) / 1e6
}
