// Package strategy turns the entry and exit rules of a stored strategy into
// deterministic evaluators. An evaluator only sees the current bar, the
// lookback window ending at that bar and, for exit rules, the open position.
package strategy

import (
	"errors"
	"fmt"
	"math"

	"backtest-worker/internal/dto"
)

var (
	ErrUnknownRule   = errors.New("unknown rule type")
	ErrExitOnlyRule  = errors.New("rule needs an open position")
	ErrInvalidParams = errors.New("invalid rule params")
)

// Context is the input of one evaluation. History ends with Candle.
type Context struct {
	Candle   dto.Candle
	History  []dto.Candle
	Position *dto.Position
	BarsHeld int
}

// Evaluator is a pure function of its Context.
type Evaluator interface {
	Evaluate(c Context) bool
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(c Context) bool

func (f EvaluatorFunc) Evaluate(c Context) bool { return f(c) }

// NewEvaluator builds the evaluator for one rule.
func NewEvaluator(rule dto.Rule) (Evaluator, error) {
	p := ruleParams(rule.Params)
	var (
		ev  Evaluator
		err error
	)
	switch rule.Type {
	case dto.RuleIndicatorThreshold:
		ev, err = newIndicatorThreshold(p)
	case dto.RuleMACross:
		ev, err = newMACross(p)
	case dto.RulePriceAction:
		ev, err = newPriceAction(p)
	case dto.RuleStopLoss:
		ev, err = newStopLoss(p)
	case dto.RuleTakeProfit:
		ev, err = newTakeProfit(p)
	case dto.RuleMaxBarsHeld:
		ev, err = newMaxBarsHeld(p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, rule.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParams, rule.Type, err)
	}
	return ev, nil
}

func isPositionRule(t dto.RuleType) bool {
	return t == dto.RuleStopLoss || t == dto.RuleTakeProfit || t == dto.RuleMaxBarsHeld
}

type indicatorThreshold struct {
	indicator string
	period    int
	above     bool
	value     float64
}

func newIndicatorThreshold(p ruleParams) (Evaluator, error) {
	indicator := p.string("indicator", "rsi")
	if err := requireOneOf("indicator", indicator, "rsi", "sma", "ema", "close"); err != nil {
		return nil, err
	}
	period, err := p.int("period", 14)
	if err != nil {
		return nil, err
	}
	if indicator != "close" {
		if err := requirePositive("period", float64(period)); err != nil {
			return nil, err
		}
	}
	operator := p.string("operator", "above")
	if err := requireOneOf("operator", operator, "above", "below"); err != nil {
		return nil, err
	}
	if _, ok := p["value"]; !ok {
		return nil, fmt.Errorf("param %q is required", "value")
	}
	value, err := p.float("value", 0)
	if err != nil {
		return nil, err
	}
	return &indicatorThreshold{indicator: indicator, period: period, above: operator == "above", value: value}, nil
}

func (r *indicatorThreshold) Evaluate(c Context) bool {
	var (
		v  float64
		ok bool
	)
	switch r.indicator {
	case "close":
		v, ok = c.Candle.Close, true
	case "rsi":
		v, ok = RSI(closes(c.History), r.period)
	case "ema":
		v, ok = EMA(closes(c.History), r.period)
	default:
		v, ok = SMA(closes(c.History), r.period)
	}
	if !ok {
		return false
	}
	if r.above {
		return v > r.value
	}
	return v < r.value
}

type maCross struct {
	fast, slow int
	kind       string
	above      bool
}

func newMACross(p ruleParams) (Evaluator, error) {
	fast, err := p.int("fast", 9)
	if err != nil {
		return nil, err
	}
	slow, err := p.int("slow", 21)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("fast", float64(fast)); err != nil {
		return nil, err
	}
	if slow <= fast {
		return nil, fmt.Errorf("param %q must be greater than %q", "slow", "fast")
	}
	kind := p.string("kind", "sma")
	if err := requireOneOf("kind", kind, "sma", "ema"); err != nil {
		return nil, err
	}
	cross := p.string("cross", "above")
	if err := requireOneOf("cross", cross, "above", "below"); err != nil {
		return nil, err
	}
	return &maCross{fast: fast, slow: slow, kind: kind, above: cross == "above"}, nil
}

// Evaluate fires on the bar where the fast average crosses the slow one.
func (r *maCross) Evaluate(c Context) bool {
	values := closes(c.History)
	if len(values) < r.slow+1 {
		return false
	}
	prev := values[:len(values)-1]
	fastNow, _ := movingAverage(r.kind, values, r.fast)
	slowNow, _ := movingAverage(r.kind, values, r.slow)
	fastPrev, _ := movingAverage(r.kind, prev, r.fast)
	slowPrev, _ := movingAverage(r.kind, prev, r.slow)
	if r.above {
		return fastPrev <= slowPrev && fastNow > slowNow
	}
	return fastPrev >= slowPrev && fastNow < slowNow
}

type priceAction struct {
	pattern string
	bars    int
}

func newPriceAction(p ruleParams) (Evaluator, error) {
	pattern := p.string("pattern", "")
	if err := requireOneOf("pattern", pattern,
		"bullish_engulfing", "bearish_engulfing",
		"higher_close", "lower_close",
		"breakout_high", "breakdown_low",
	); err != nil {
		return nil, err
	}
	bars, err := p.int("bars", 0)
	if err != nil {
		return nil, err
	}
	if bars < 0 {
		return nil, fmt.Errorf("param %q must not be negative", "bars")
	}
	return &priceAction{pattern: pattern, bars: bars}, nil
}

func (r *priceAction) Evaluate(c Context) bool {
	h := c.History
	n := len(h)
	if n < 2 {
		return false
	}
	cur, prev := h[n-1], h[n-2]
	switch r.pattern {
	case "bullish_engulfing":
		return prev.Close < prev.Open && cur.Close > cur.Open &&
			cur.Open <= prev.Close && cur.Close >= prev.Open
	case "bearish_engulfing":
		return prev.Close > prev.Open && cur.Close < cur.Open &&
			cur.Open >= prev.Close && cur.Close <= prev.Open
	case "higher_close", "lower_close":
		bars := r.bars
		if bars == 0 {
			bars = 1
		}
		if n < bars+1 {
			return false
		}
		for i := n - bars; i < n; i++ {
			if r.pattern == "higher_close" && h[i].Close <= h[i-1].Close {
				return false
			}
			if r.pattern == "lower_close" && h[i].Close >= h[i-1].Close {
				return false
			}
		}
		return true
	case "breakout_high", "breakdown_low":
		prior := h[:n-1]
		if r.bars > 0 {
			if len(prior) < r.bars {
				return false
			}
			prior = prior[len(prior)-r.bars:]
		}
		if r.pattern == "breakout_high" {
			highest := math.Inf(-1)
			for _, p := range prior {
				highest = math.Max(highest, p.High)
			}
			return cur.Close > highest
		}
		lowest := math.Inf(1)
		for _, p := range prior {
			lowest = math.Min(lowest, p.Low)
		}
		return cur.Close < lowest
	}
	return false
}

type stopLoss struct{ percent float64 }

func newStopLoss(p ruleParams) (Evaluator, error) {
	pct, err := p.float("percent", 0)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("percent", pct); err != nil {
		return nil, err
	}
	return &stopLoss{percent: pct}, nil
}

func (r *stopLoss) Evaluate(c Context) bool {
	if c.Position == nil {
		return false
	}
	if c.Position.Direction == dto.DirectionShort {
		return c.Candle.Close >= c.Position.EntryPrice*(1+r.percent/100)
	}
	return c.Candle.Close <= c.Position.EntryPrice*(1-r.percent/100)
}

type takeProfit struct{ percent float64 }

func newTakeProfit(p ruleParams) (Evaluator, error) {
	pct, err := p.float("percent", 0)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("percent", pct); err != nil {
		return nil, err
	}
	return &takeProfit{percent: pct}, nil
}

func (r *takeProfit) Evaluate(c Context) bool {
	if c.Position == nil {
		return false
	}
	if c.Position.Direction == dto.DirectionShort {
		return c.Candle.Close <= c.Position.EntryPrice*(1-r.percent/100)
	}
	return c.Candle.Close >= c.Position.EntryPrice*(1+r.percent/100)
}

type maxBarsHeld struct{ bars int }

func newMaxBarsHeld(p ruleParams) (Evaluator, error) {
	bars, err := p.int("bars", 0)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("bars", float64(bars)); err != nil {
		return nil, err
	}
	return &maxBarsHeld{bars: bars}, nil
}

func (r *maxBarsHeld) Evaluate(c Context) bool {
	return c.Position != nil && c.BarsHeld >= r.bars
}
