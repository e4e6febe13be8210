package handoff

// 路由与分类使用的短语表。字符串启发式本身脆弱，集中在这里以便替换或本地化，
// 控制流不依赖具体语言。

// Route 是一条强制关键词路由。类别命中后按 Split 顺序细分，
// 子规则都不命中时使用 Agent。
type Route struct {
	Category string   `json:"category" yaml:"category"`
	Agent    string   `json:"agent" yaml:"agent"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Split    []Route  `json:"split,omitempty" yaml:"split,omitempty"`
}

// RoutingTable 按优先级排列，第一个命中的类别胜出。
type RoutingTable []Route

// DefaultRoutingTable 返回航空客服场景的路由表：tech > hr > flight，
// flight 内部再区分座位与航班状态。
func DefaultRoutingTable() RoutingTable {
	return RoutingTable{
		{
			Category: "tech",
			Agent:    "TechSupportAgent",
			Keywords: []string{
				"password", "login", "log in", "sign in", "username", "account locked",
				"app", "website", "error", "bug", "crash", "technical", "two-factor",
			},
		},
		{
			Category: "hr",
			Agent:    "HRAgent",
			Keywords: []string{
				"vacation", "salary", "payroll", "paycheck", "benefits", "hr",
				"human resources", "sick leave", "parental leave", "pto", "employee", "hiring",
			},
		},
		{
			Category: "flight",
			Agent:    "FlightStatusAgent",
			Keywords: []string{
				"flight", "seat", "boarding", "gate", "departure", "arrival",
				"delay", "delayed", "aisle", "layover",
			},
			Split: []Route{
				{Category: "seat", Agent: "SeatBookingAgent", Keywords: []string{"seat", "aisle", "window seat", "legroom"}},
				{Category: "status", Agent: "FlightStatusAgent", Keywords: []string{"status", "delay", "delayed", "departure", "arrival", "gate", "on time", "boarding"}},
			},
		},
	}
}

// Agents 返回表中引用的全部 Agent 名称（含子规则），去重保序。
func (t RoutingTable) Agents() []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(routes []Route)
	walk = func(routes []Route) {
		for _, r := range routes {
			if r.Agent != "" && !seen[r.Agent] {
				seen[r.Agent] = true
				out = append(out, r.Agent)
			}
			walk(r.Split)
		}
	}
	walk(t)
	return out
}

// Restrict 返回只引用 registered 中 Agent 的路由表副本，以及被丢弃的类别。
// 顶层 Agent 缺失时整条路由（含子规则）丢弃；子规则 Agent 缺失时只丢弃该子规则。
// 结果非 nil，空表表示不做强制路由。
func (t RoutingTable) Restrict(registered map[string]bool) (RoutingTable, []string) {
	out := make(RoutingTable, 0, len(t))
	var dropped []string
	for _, r := range t {
		if !registered[r.Agent] {
			dropped = append(dropped, r.Category)
			continue
		}
		kept := r
		kept.Split = nil
		for _, sub := range r.Split {
			if !registered[sub.Agent] {
				dropped = append(dropped, r.Category+"/"+sub.Category)
				continue
			}
			kept.Split = append(kept.Split, sub)
		}
		out = append(out, kept)
	}
	return out, dropped
}

// QuestionCues 是除结尾问号外，表示 Agent 正在等待用户补充信息的指令短语。
var QuestionCues = []string{
	"please confirm",
	"please provide",
	"provide the flight number",
	"provide your",
	"could you provide",
	"can you provide",
	"could you tell me",
	"can you tell me",
	"please share",
	"please send",
	"let me know",
	"what is your",
	"which seat",
	"which flight",
}

// HandoffPhrases 表示 triage 试图用文字而非工具调用完成转交。
var HandoffPhrases = []string{
	"transfer",
	"hand off",
	"handoff",
	"handing you",
	"hand you over",
	"delegate",
	"delegating",
	"forwarding you",
	"forward you",
	"connecting you",
	"connect you",
	"please hold",
	"redirecting you",
	"routing you",
	"i'll pass you",
	"passing you",
}

// RefusalPhrases 表示专家声明请求超出其范围。
var RefusalPhrases = []string{
	"i can't help with this",
	"i can't help with that",
	"i cannot help with this",
	"i cannot help with that",
	"i'm unable to help with",
	"i am unable to help with",
	"that's outside my area",
	"that is outside my area",
	"outside my area of expertise",
	"outside my expertise",
	"outside of my expertise",
	"not within my scope",
	"outside my scope",
	"i don't have information about that",
	"i do not have information about that",
	"i don't have information on that",
	"not something i can help with",
}
