package dto

type RuleType string

const (
	RuleIndicatorThreshold RuleType = "indicator_threshold"
	RuleMACross            RuleType = "ma_cross"
	RulePriceAction        RuleType = "price_action"
	RuleStopLoss           RuleType = "stop_loss"
	RuleTakeProfit         RuleType = "take_profit"
	RuleMaxBarsHeld        RuleType = "max_bars_held"
)

type RuleMatch string

const (
	MatchAll RuleMatch = "all"
	MatchAny RuleMatch = "any"
)

// Rule is one entry of a strategy's entry or exit list. Params are
// interpreted by the rule type; see the strategy package.
type Rule struct {
	Type   RuleType               `json:"type"`
	Params map[string]interface{} `json:"params"`
}

// RuleSet groups rules with a combination mode and the trade direction
// they open. Direction is only read from the entry set.
type RuleSet struct {
	Direction Direction `json:"direction,omitempty"`
	Match     RuleMatch `json:"match,omitempty"`
	Rules     []Rule    `json:"rules"`
}

type StrategyRules struct {
	Entry RuleSet `json:"entry"`
	Exit  RuleSet `json:"exit"`
}
