// Package router classifies user queries onto specialist agents.
//
// Classification is two-phase and cost-ordered: a keyword fast path that
// never touches the completion service, then an LLM classification pass for
// queries the keywords cannot place. Routing never returns an error to the
// caller; it degrades to the general agent with low confidence.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/crewmind/crewmind-go/pkg/agent"
	"github.com/crewmind/crewmind-go/pkg/llm"
)

const (
	// keywordConfidenceWithToolkit is the fast-path confidence when the
	// user also holds a toolkit relevant to the matched role.
	keywordConfidenceWithToolkit = 0.85

	// keywordConfidenceBare is the fast-path confidence without a
	// supporting toolkit.
	keywordConfidenceBare = 0.70

	// llmFallbackConfidence is assigned when the LLM response cannot be
	// parsed.
	llmFallbackConfidence = 0.3

	historyTurns      = 3
	historyTurnMaxLen = 200
	toolkitBoost      = 0.1
)

// RoutingContext carries everything the router may consult for a decision.
type RoutingContext struct {
	Query               string
	ConversationHistory []agent.Message
	AvailableAgents     map[agent.Role]string // role → description
	UserToolkits        []string
}

// RoutingDecision is the router's answer. Transient; never persisted.
type RoutingDecision struct {
	TargetAgent        agent.Role   `json:"targetAgent"`
	Confidence         float64      `json:"confidence"`
	Reasoning          string       `json:"reasoning"`
	RequiresMultiAgent bool         `json:"requiresMultiAgent"`
	AgentSequence      []agent.Role `json:"agentSequence,omitempty"`
	SuggestedTools     []string     `json:"suggestedTools,omitempty"`
}

// keywordRule binds a role to the query patterns that select it. Rules are
// evaluated in order; the first match wins.
type keywordRule struct {
	role     agent.Role
	patterns []*regexp.Regexp
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		compiled[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return compiled
}

// keywordRules is the ordered fast-path classification table.
var keywordRules = []keywordRule{
	{agent.RoleSales, compilePatterns(
		`\bsales\b`, `\bdeal(s)?\b`, `\bpipeline\b`, `\blead(s)?\b`,
		`\bcrm\b`, `\bquota\b`, `\bprospect(s)?\b`, `\brevenue\b`,
	)},
	{agent.RoleMarketing, compilePatterns(
		`\bmarketing\b`, `\bcampaign(s)?\b`, `\bemail blast\b`, `\bnewsletter\b`,
		`\bsocial media\b`, `\baudience\b`, `\bbrand\b`, `\bseo\b`,
	)},
	{agent.RoleResearch, compilePatterns(
		`\bresearch\b`, `\bfind out\b`, `\blook up\b`, `\bcompetitor(s)?\b`,
		`\binvestigate\b`, `\bsearch (the )?web\b`, `\blatest news\b`,
	)},
	{agent.RoleCode, compilePatterns(
		`\bcode\b`, `\bbug(s)?\b`, `\bpull request(s)?\b`, `\brepo(sitory)?\b`,
		`\bgithub\b`, `\bdebug\b`, `\bfunction\b`, `\bcompile\b`, `\bdeploy\b`,
	)},
	{agent.RoleData, compilePatterns(
		`\bsql\b`, `\bquery\b`, `\bdatabase\b`, `\banalytics\b`,
		`\bdashboard\b`, `\breport(s)?\b`, `\bspreadsheet\b`, `\bmetric(s)?\b`,
	)},
}

// roleToolkits maps each role to toolkit-name keywords that count as
// supporting evidence for routing to that role.
var roleToolkits = map[agent.Role][]string{
	agent.RoleSales:     {"crm", "sales", "hubspot", "salesforce", "pipedrive"},
	agent.RoleMarketing: {"marketing", "mailchimp", "email", "social"},
	agent.RoleResearch:  {"search", "web", "browser", "news"},
	agent.RoleCode:      {"github", "git", "gitlab", "code"},
	agent.RoleData:      {"database", "sql", "sheets", "bigquery", "analytics"},
}

// Router classifies queries. Safe for concurrent use.
type Router struct {
	llm    llm.Provider
	model  string
	logger *zap.Logger
}

// New creates a Router. The provider may be nil, in which case the LLM
// phase is skipped and ambiguous queries route to general.
func New(provider llm.Provider, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{llm: provider, logger: logger.Named("router")}
}

// Route classifies the query onto an agent. It never returns an error:
// every failure mode degrades to the general agent with low confidence.
//
// A keyword match is returned without consulting the completion service;
// the LLM phase runs only for queries the pattern table cannot place.
func (r *Router) Route(ctx context.Context, rctx *RoutingContext) *RoutingDecision {
	if decision := r.keywordRoute(rctx); decision != nil {
		return r.validate(decision, rctx)
	}

	decision := &RoutingDecision{
		TargetAgent: agent.RoleGeneral,
		Confidence:  0.5,
		Reasoning:   "no keyword match",
	}
	if llmDecision := r.llmRoute(ctx, rctx); llmDecision != nil {
		decision = llmDecision
	}
	return r.validate(decision, rctx)
}

// keywordRoute runs the ordered pattern table over the query. Returns nil
// when no specialist pattern matches.
func (r *Router) keywordRoute(rctx *RoutingContext) *RoutingDecision {
	for _, rule := range keywordRules {
		for _, pattern := range rule.patterns {
			if !pattern.MatchString(rctx.Query) {
				continue
			}
			confidence := keywordConfidenceBare
			if holdsToolkit(rctx.UserToolkits, rule.role) {
				confidence = keywordConfidenceWithToolkit
			}
			return &RoutingDecision{
				TargetAgent: rule.role,
				Confidence:  confidence,
				Reasoning:   fmt.Sprintf("keyword match for %s", rule.role),
			}
		}
	}
	return nil
}

// llmRoute asks the completion service to classify the query. Returns nil
// when the provider is unset or the call fails; the caller keeps the
// keyword decision in that case.
func (r *Router) llmRoute(ctx context.Context, rctx *RoutingContext) *RoutingDecision {
	if r.llm == nil {
		return nil
	}

	completion, err := r.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: classifierSystemPrompt},
		{Role: "user", Content: r.buildClassifierPrompt(rctx)},
	}, llm.WithTemperature(0.1), llm.WithMaxTokens(500))
	if err != nil {
		r.logger.Warn("classification call failed, keeping keyword decision", zap.Error(err))
		return nil
	}

	decision, err := parseDecision(completion.Content)
	if err != nil {
		r.logger.Warn("unparseable classification response", zap.Error(err))
		return &RoutingDecision{
			TargetAgent: agent.RoleGeneral,
			Confidence:  llmFallbackConfidence,
			Reasoning:   "parse failure",
		}
	}
	return decision
}

const classifierSystemPrompt = `You are a routing classifier for a team of specialist AI agents.
Given a user query, decide which agent should handle it. Respond with a single JSON object:
{"targetAgent": "...", "confidence": 0.0-1.0, "reasoning": "...", "requiresMultiAgent": false, "agentSequence": [...], "suggestedTools": [...]}
Set requiresMultiAgent true and fill agentSequence only when the query genuinely spans multiple specialties.`

func (r *Router) buildClassifierPrompt(rctx *RoutingContext) string {
	var b strings.Builder

	if n := len(rctx.ConversationHistory); n > 0 {
		b.WriteString("Recent conversation:\n")
		start := n - historyTurns
		if start < 0 {
			start = 0
		}
		for _, msg := range rctx.ConversationHistory[start:] {
			content := truncateRunes(msg.Content, historyTurnMaxLen)
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, content)
		}
		b.WriteString("\n")
	}

	if len(rctx.UserToolkits) > 0 {
		fmt.Fprintf(&b, "User's connected toolkits: %s\n\n", strings.Join(rctx.UserToolkits, ", "))
	}

	b.WriteString("Available agents:\n")
	for _, role := range agent.Roles() {
		desc, ok := rctx.AvailableAgents[role]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", role, desc)
	}

	fmt.Fprintf(&b, "\nQuery: %s\n", rctx.Query)
	return b.String()
}

// parseDecision extracts the first balanced {...} block from the model
// output and decodes it. Models frequently wrap JSON in code fences or
// prose; both are tolerated.
func parseDecision(content string) (*RoutingDecision, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return nil, err
	}
	var decision RoutingDecision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return nil, fmt.Errorf("decode routing decision: %w", err)
	}
	if decision.TargetAgent == "" {
		return nil, fmt.Errorf("routing decision missing targetAgent")
	}
	return &decision, nil
}

func extractJSONObject(content string) (string, error) {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

// validate corrects the decision against the actually available agents and
// applies the toolkit confidence boost. Confidence is clamped to [0,1]
// first; model output is not trusted to stay in range.
func (r *Router) validate(decision *RoutingDecision, rctx *RoutingContext) *RoutingDecision {
	switch {
	case decision.Confidence < 0:
		decision.Confidence = 0
	case decision.Confidence > 1:
		decision.Confidence = 1
	}

	if _, ok := rctx.AvailableAgents[decision.TargetAgent]; !ok {
		r.logger.Warn("decision targeted unavailable agent, forcing general",
			zap.String("target", string(decision.TargetAgent)))
		decision.TargetAgent = agent.RoleGeneral
		decision.Confidence /= 2
	}

	if holdsToolkit(rctx.UserToolkits, decision.TargetAgent) {
		decision.Confidence += toolkitBoost
		if decision.Confidence > 1.0 {
			decision.Confidence = 1.0
		}
	}
	return decision
}

// truncateRunes cuts s to at most max bytes without splitting a UTF-8
// rune mid-sequence.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// holdsToolkit reports whether any of the user's toolkit names contains a
// keyword relevant to the role.
func holdsToolkit(toolkits []string, role agent.Role) bool {
	keywords, ok := roleToolkits[role]
	if !ok {
		return false
	}
	for _, toolkit := range toolkits {
		lowered := strings.ToLower(toolkit)
		for _, keyword := range keywords {
			if strings.Contains(lowered, keyword) {
				return true
			}
		}
	}
	return false
}
