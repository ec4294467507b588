package strategy

import (
	"fmt"

	"backtest-worker/internal/dto"
)

// Set combines evaluators. An empty set never signals.
type Set struct {
	match      dto.RuleMatch
	evaluators []Evaluator
}

func NewSet(match dto.RuleMatch, evaluators ...Evaluator) *Set {
	return &Set{match: match, evaluators: evaluators}
}

func (s *Set) Signal(c Context) bool {
	if s == nil || len(s.evaluators) == 0 {
		return false
	}
	if s.match == dto.MatchAny {
		for _, ev := range s.evaluators {
			if ev.Evaluate(c) {
				return true
			}
		}
		return false
	}
	for _, ev := range s.evaluators {
		if !ev.Evaluate(c) {
			return false
		}
	}
	return true
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.evaluators)
}

// Rules is a compiled strategy ready for simulation.
type Rules struct {
	Direction dto.Direction
	Entry     *Set
	Exit      *Set
}

// Compile validates and builds the entry and exit sets. Entry rules match
// all by default, exit rules match any.
func Compile(rules dto.StrategyRules) (*Rules, error) {
	direction := rules.Entry.Direction
	switch direction {
	case "":
		direction = dto.DirectionLong
	case dto.DirectionLong, dto.DirectionShort:
	default:
		return nil, fmt.Errorf("%w: direction %q", ErrInvalidParams, direction)
	}

	entry, err := compileSet(rules.Entry, dto.MatchAll, false)
	if err != nil {
		return nil, fmt.Errorf("entry rules: %w", err)
	}
	exit, err := compileSet(rules.Exit, dto.MatchAny, true)
	if err != nil {
		return nil, fmt.Errorf("exit rules: %w", err)
	}
	return &Rules{Direction: direction, Entry: entry, Exit: exit}, nil
}

func compileSet(set dto.RuleSet, defaultMatch dto.RuleMatch, allowPosition bool) (*Set, error) {
	match := set.Match
	switch match {
	case "":
		match = defaultMatch
	case dto.MatchAll, dto.MatchAny:
	default:
		return nil, fmt.Errorf("%w: match %q", ErrInvalidParams, match)
	}
	evaluators := make([]Evaluator, 0, len(set.Rules))
	for i, rule := range set.Rules {
		if !allowPosition && isPositionRule(rule.Type) {
			return nil, fmt.Errorf("rule %d: %w: %s", i, ErrExitOnlyRule, rule.Type)
		}
		ev, err := NewEvaluator(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		evaluators = append(evaluators, ev)
	}
	return NewSet(match, evaluators...), nil
}
