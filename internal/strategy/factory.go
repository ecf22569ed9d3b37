package strategy

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Kinds supported by New. Preset files refer to these names.
const (
	KindRSI         = "rsi"
	KindMACrossover = "ma_crossover"
	KindEMA         = "ema_crossover"
	KindCombined    = "combined"
	KindStochastic  = "stochastic"
	KindAdaptive    = "adaptive"
)

// New builds a strategy from its kind and a loosely-typed parameter map,
// as read from a preset file. Unknown kinds and malformed parameters fail
// fast so a bad preset never reaches the simulation loop.
func New(kind string, params map[string]any) (Strategy, error) {
	switch kind {
	case KindRSI:
		var p RSIParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewRSI(p), nil
	case KindMACrossover:
		var p CrossoverParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewMACrossover(p), nil
	case KindEMA:
		var p CrossoverParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewEMACrossover(p), nil
	case KindCombined:
		var p CombinedParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewCombined(p), nil
	case KindStochastic:
		var p StochasticParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewStochastic(p), nil
	case KindAdaptive:
		var p AdaptiveParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewAdaptive(p), nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q (supported: %v)", kind, Kinds())
	}
}

// Kinds returns the supported strategy kinds in stable order.
func Kinds() []string {
	kinds := []string{KindRSI, KindMACrossover, KindEMA, KindCombined, KindStochastic, KindAdaptive}
	sort.Strings(kinds)
	return kinds
}

func decodeParams(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		TagName:     "yaml",
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode strategy params: %w", err)
	}
	return nil
}
