package context

import (
	"regexp"
	"strings"

	"github.com/BaSui01/agentdesk/types"
)

// FactKind 事实类别
type FactKind string

const (
	FactFlightNumber FactKind = "flight_number"
	FactSeatCode     FactKind = "seat_code"
	FactIntent       FactKind = "intent"
)

// 意图取值
const (
	IntentCancellation = "cancellation_requested"
	IntentSeatChange   = "seat_change_requested"
)

// Fact 是从历史中抽取的结构化数据，每轮重新计算，不单独存储。
type Fact struct {
	Kind  FactKind `json:"kind"`
	Value string   `json:"value"`
}

func (f Fact) String() string { return string(f.Kind) + ": " + f.Value }

var (
	flightPattern = regexp.MustCompile(`\b[A-Z]{2}\d{3,4}\b`)
	seatPattern   = regexp.MustCompile(`\b\d{1,2}[A-F]\b`)
)

// IntentRule 匹配意图：All 中每个词都出现，且 Any 为空或至少出现一个。
type IntentRule struct {
	Value string
	All   []string
	Any   []string
}

// IntentRules 是意图标记表，按顺序检查。
var IntentRules = []IntentRule{
	{Value: IntentCancellation, Any: []string{"cancel", "cancellation", "refund"}},
	{Value: IntentSeatChange, All: []string{"seat"}, Any: []string{"change", "switch", "move", "swap", "another"}},
}

func (r IntentRule) matches(lower string) bool {
	for _, w := range r.All {
		if !strings.Contains(lower, w) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return true
	}
	for _, w := range r.Any {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// ExtractFacts 按时间顺序扫描 turns。航班号和座位号从所有轮次中抽取，
// 意图只从用户轮次中抽取（Agent 的追问不是用户的请求）。
func ExtractFacts(turns []types.Turn) []Fact {
	facts := make([]Fact, 0)
	seen := make(map[Fact]struct{})
	add := func(f Fact) {
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		facts = append(facts, f)
	}

	for _, t := range turns {
		for _, m := range flightPattern.FindAllString(t.Content, -1) {
			add(Fact{Kind: FactFlightNumber, Value: m})
		}
		for _, m := range seatPattern.FindAllString(t.Content, -1) {
			add(Fact{Kind: FactSeatCode, Value: m})
		}
		if t.Role != types.RoleUser {
			continue
		}
		lower := strings.ToLower(t.Content)
		for _, rule := range IntentRules {
			if rule.matches(lower) {
				add(Fact{Kind: FactIntent, Value: rule.Value})
			}
		}
	}
	return facts
}
