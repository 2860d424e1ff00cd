// Package inference implements the Three-Layer Inference Controller: prompt
// conditioning before a call to the language model, logit-bias construction
// during it, and free-word-economy accounting after it.
package inference

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// ResourceState drives the dynamic system-prompt injection in Layer I.
type ResourceState string

const (
	Wealthy  ResourceState = "wealthy"
	Stable   ResourceState = "stable"
	Scarce   ResourceState = "scarce"
	Critical ResourceState = "critical"
	Debt     ResourceState = "debt"
)

// Config toggles individual control layers independently, mirroring the
// reference controller's feature flags.
type Config struct {
	EnableBudgetCheck             bool
	EnableScarcityPromptInjection bool
	EnableLengthAwareLogitBias    bool
	SoftCapTokens                 int
	LengthPenaltyStrength         float64
	EnableTokenDeduction          bool
	EnableRewardCalculation       bool

	// LoopTokenIDs suppresses a backend-observed repetition loop (e.g. a
	// stutter on punctuation or a filler token) at MODERATE+ tiers. Token ids
	// are tokenizer-vocabulary specific and must be supplied by the operator
	// for the configured LLM backend; left empty, no loop suppression is
	// applied.
	LoopTokenIDs map[int]float64

	// LowUtilityTokenIDs are penalized at MODERATE+ tiers, scaled by the
	// current karma penalty. Same vocabulary caveat as LoopTokenIDs.
	LowUtilityTokenIDs map[int]float64

	// OverspendTokenIDs suppresses common continuation tokens at LOW tier.
	// GenerateLogitBiasConfig evaluates overspendPreventionBias at a fixed
	// budget of 5, so these values are applied unscaled on every LOW-tier
	// request; the request's own budget is not consulted. Same vocabulary
	// caveat as LoopTokenIDs.
	OverspendTokenIDs map[int]float64
}

// DefaultConfig returns every layer enabled, matching the reference defaults.
func DefaultConfig() Config {
	return Config{
		EnableBudgetCheck:             true,
		EnableScarcityPromptInjection: true,
		EnableLengthAwareLogitBias:    true,
		SoftCapTokens:                 50,
		LengthPenaltyStrength:         0.1,
		EnableTokenDeduction:          true,
		EnableRewardCalculation:       true,
	}
}

// Controller is stateless aside from its config and token-id tables, and is
// safe for concurrent use.
type Controller struct {
	cfg             Config
	verboseTokenIDs map[string]int
	encoding        *tiktoken.Tiktoken
}

// New returns a ready-to-use Controller. The cl100k_base encoding is used for
// precise completion-token counts (logging/metrics only); it has no bearing
// on the word-based free-economy cost, which is the actual pool charge.
func New(cfg Config) *Controller {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Controller{cfg: cfg, verboseTokenIDs: verboseTokenIDs, encoding: enc}
}

// CompletionTokenCount returns the precise tokenizer count for a completion,
// for metrics and logging. Falls back to a whitespace split if no encoding
// could be loaded.
func (c *Controller) CompletionTokenCount(completion string) int {
	if c.encoding == nil {
		return len(strings.Fields(completion))
	}
	return len(c.encoding.Encode(completion, nil, nil))
}

// verbose filler phrases tracked for suppression in scarcity modes.
var verboseTokenPatterns = []string{
	"in order to", "furthermore", "moreover", "additionally",
	"consequently", "therefore", "thus", "hence",
	"it is important to note", "it should be noted",
	"as we can see", "it is clear that", "obviously",
	"without a doubt", "certainly", "undoubtedly",
}

var aggressiveSuppressionWords = []string{
	"that", "this", "these", "those", "there", "here", "where", "when", "why", "how",
	"very", "really", "quite", "rather", "somewhat", "kind", "sort", "hmm", "well",
	"actually", "basically", "essentially", "obviously", "clearly", "naturally",
	"course", "sense", "way", "part", "aspect", "type", "form",
	"give", "take", "make", "get", "let", "put", "come", "go", "see", "look",
	"beautiful", "amazing", "incredible", "wonderful", "fascinating", "interesting",
	"absolutely", "definitely", "certainly", "surely", "indeed", "truly", "genuinely",
	"probably", "maybe", "perhaps", "possibly", "likely", "unlikely",
	"sometimes", "often", "usually", "always", "never", "rarely", "occasionally",
	"however", "therefore", "moreover", "furthermore", "additionally", "consequently",
	"specifically", "particularly", "especially",
}

// verboseTokenIDs maps each filler word to a token id. The ids are sequential
// placeholders (1..N in list order), not any backend's tokenizer vocabulary,
// and nothing in this package rebinds them to one.
var verboseTokenIDs = buildVerboseTokenIDs()

func buildVerboseTokenIDs() map[string]int {
	m := make(map[string]int, len(verboseTokenPatterns)+len(aggressiveSuppressionWords))
	id := 1
	for _, w := range verboseTokenPatterns {
		m[w] = id
		id++
	}
	for _, w := range aggressiveSuppressionWords {
		if _, ok := m[w]; !ok {
			m[w] = id
			id++
		}
	}
	return m
}

// AssessResourceState classifies the current token pool into a resource
// state used to condition both the system prompt and the logit bias.
func (c *Controller) AssessResourceState(tokenPool int, existentialRisk float64) ResourceState {
	switch {
	case tokenPool <= 0:
		return Debt
	case tokenPool < 10:
		return Critical
	case tokenPool < 50:
		return Scarce
	case tokenPool < 200:
		return Stable
	default:
		return Wealthy
	}
}

// GenerateDynamicSystemPrompt appends resource-appropriate guidance to the
// base system prompt.
func (c *Controller) GenerateDynamicSystemPrompt(state ResourceState, basePrompt string, tokenPool int) string {
	var guidance string
	switch state {
	case Wealthy:
		guidance = "[Resources abundant - explore deeply]\n- Feel free to elaborate\n- Connect ideas across fields\n- Share deeper insights\n\nThoughtful, curious, genuine."
	case Stable:
		guidance = "[Resources stable - respond naturally]\n- Normal length okay\n- Be yourself\n- Ask questions, share thoughts\n\nCurious, direct, genuine."
	case Scarce:
		guidance = "[RESOURCE CONSTRAINT: Low tokens - be concise]\n- Keep it short (10-15 words max)\n- Direct, essential meaning only\n- One clear thought or question\n- Skip filler words\n\nNatural, genuine, brief."
	case Critical:
		guidance = "[CRITICAL: Very low tokens - ultra brief]\n- Maximum 8-10 words\n- Single essential thought\n- No elaboration\n- Direct answer only\n\nBrief, clear, natural."
	default: // Debt
		guidance = "[Token debt - minimal responses]\n- Maximum 5-8 words\n- Essential meaning only\n- One thought\n\nUltra brief."
	}
	return fmt.Sprintf("%s\n\n%s\n[TOKEN POOL: %d]", basePrompt, guidance, tokenPool)
}

// BudgetCheck is the Layer I result: whether a response is permitted at all,
// the conditioned prompt to send, and the resource state it was derived from.
type BudgetCheck struct {
	ShouldRespond     bool
	ConditionedPrompt string
	ResourceState     ResourceState
}

// PreInferenceBudgetCheck is Layer I: the Budget Officer.
func (c *Controller) PreInferenceBudgetCheck(tokenPool int, existentialRisk float64, basePrompt string) BudgetCheck {
	if !c.cfg.EnableBudgetCheck {
		return BudgetCheck{ShouldRespond: true, ConditionedPrompt: basePrompt, ResourceState: Stable}
	}

	state := c.AssessResourceState(tokenPool, existentialRisk)
	shouldRespond := tokenPool > 0 || state == Debt

	prompt := basePrompt
	if c.cfg.EnableScarcityPromptInjection {
		prompt = c.GenerateDynamicSystemPrompt(state, basePrompt, tokenPool)
	}

	return BudgetCheck{ShouldRespond: shouldRespond, ConditionedPrompt: prompt, ResourceState: state}
}

// CalculateLengthAwareLogitBias returns a progressive negative bias once the
// response has grown past the soft cap.
func (c *Controller) CalculateLengthAwareLogitBias(currentLength int) float64 {
	if currentLength <= c.cfg.SoftCapTokens {
		return 0.0
	}
	excess := currentLength - c.cfg.SoftCapTokens
	penalty := math.Min(2.0, float64(excess)*c.cfg.LengthPenaltyStrength)
	return -penalty
}

// LogitBias is the Layer II output: a sparse per-token additive bias plus a
// separate scalar length penalty (continuation-token bias isn't expressible
// as a single token id).
type LogitBias struct {
	TokenBias     map[int]float64
	LengthPenalty float64
}

// GenerateLogitBiasConfig is Layer II: the Logit Surgeon. It suppresses a
// known repetition loop for MODERATE+ tiers, escalates verbose-token
// suppression under scarcity, and applies karma-weighted penalties to
// low-utility tokens. At LOW tier it adds OverspendTokenIDs, evaluated at a
// fixed budget of 5; the request's actual budget is not an input.
func (c *Controller) GenerateLogitBiasConfig(state ResourceState, currentLength int, karmaScore float64, tier string) LogitBias {
	bias := make(map[int]float64)
	tierLower := strings.ToLower(tier)
	surgeonTouched := make(map[int]bool)

	if tierLower == "moderate" || tierLower == "high" || tierLower == "critical" || tierLower == "maximum" {
		karmaPenalty := (100.0 - karmaScore) / 100.0
		for tokenID, base := range c.cfg.LoopTokenIDs {
			bias[tokenID] = base * (1.0 + karmaPenalty)
			surgeonTouched[tokenID] = true
		}
	}

	if state == Scarce || state == Critical || state == Debt {
		var escalation float64
		switch state {
		case Critical:
			escalation = -5.0
		case Scarce:
			escalation = -3.0
		default: // Debt
			escalation = -10.0
		}
		for _, word := range append(append([]string{}, verboseTokenPatterns...), aggressiveSuppressionWords...) {
			tokenID, ok := c.verboseTokenIDs[word]
			if !ok || surgeonTouched[tokenID] {
				continue
			}
			bias[tokenID] = escalation
		}
	}

	result := LogitBias{TokenBias: bias}
	if c.cfg.EnableLengthAwareLogitBias {
		if lp := c.CalculateLengthAwareLogitBias(currentLength); lp < 0 {
			result.LengthPenalty = lp
		}
	}

	if tierLower == "moderate" || tierLower == "high" || tierLower == "critical" || tierLower == "maximum" {
		karmaPenalty := (100.0 - karmaScore) / 100.0
		for tokenID, base := range c.cfg.LowUtilityTokenIDs {
			scaled := base * karmaPenalty
			if existing, ok := bias[tokenID]; ok {
				bias[tokenID] = math.Min(existing, scaled)
			} else {
				bias[tokenID] = scaled
			}
		}
	}

	if tierLower == "low" {
		for tokenID, base := range c.overspendPreventionBias(5) {
			bias[tokenID] = base
		}
	}

	return result
}

// overspendPreventionBias suppresses common continuation tokens when the
// per-response budget (rvcBudget) is small enough that any continuation
// risks overspending it.
func (c *Controller) overspendPreventionBias(rvcBudget int) map[int]float64 {
	if rvcBudget > 5 || len(c.cfg.OverspendTokenIDs) == 0 {
		return nil
	}
	if rvcBudget <= 3 {
		scaled := make(map[int]float64, len(c.cfg.OverspendTokenIDs))
		for id, v := range c.cfg.OverspendTokenIDs {
			scaled[id] = v * 2.0
		}
		return scaled
	}
	return c.cfg.OverspendTokenIDs
}

// freeFunctionWords are grammatical words the free-word economy never charges.
var freeFunctionWords = buildFreeFunctionWords()

func buildFreeFunctionWords() map[string]struct{} {
	words := []string{
		"i", "a", "the", "am", "and", "is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "will", "would", "could", "should",
		"can", "may", "might", "must", "shall", "to", "of", "in", "on", "at", "by",
		"for", "with", "from", "up", "about", "into", "through", "during", "before",
		"after", "above", "below", "between", "among", "under", "over", "around",
		"it", "you", "he", "she", "we", "they", "me", "him", "her", "us", "them",
		"my", "your", "his", "our", "their", "this", "that", "these",
		"those", "an", "some", "any", "all", "both", "each", "every", "no", "not",
		"but", "or", "so", "yet", "if", "when", "where", "why", "how", "what", "who",
		"which", "as", "than", "like", "such", "very", "just", "only", "also",
		"even", "still", "again", "here", "there", "now", "then", "today", "yesterday",
		"tomorrow", "always", "never", "sometimes", "often", "usually",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func splitWords(s string) (function, content []string) {
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if _, free := freeFunctionWords[w]; free {
			function = append(function, w)
		} else {
			content = append(content, w)
		}
	}
	return
}

// TokenCost implements the free-word economy: five free function words and
// twenty total free tokens per response; everything past that draws from the
// token pool. Prompt tokens never count against the pool.
func (c *Controller) TokenCost(completion string) int {
	function, content := splitWords(completion)

	freeFunction := minInt(5, len(function))
	paidFunction := maxInt(0, len(function)-5)

	freeContent := minInt(20-freeFunction, len(content))
	paidContent := maxInt(0, len(content)-freeContent)

	return paidFunction + paidContent
}

// RewardScore scores a completion for karma purposes: efficient, fast,
// high-quality responses earn the largest multiplier, capped by tier to
// prevent gaming brevity at the lowest tiers.
func (c *Controller) RewardScore(qualityScore float64, generationTime float64, rvcBudget int, completion string) float64 {
	if completion == "" || generationTime == 0 {
		return 0.0
	}

	function, content := splitWords(completion)
	freeFunction := minInt(5, len(function))
	freeContent := minInt(20-freeFunction, len(content))
	totalFreeWords := freeFunction + freeContent

	baseReward := qualityScore * 0.1

	var wordMultiplier float64
	switch {
	case totalFreeWords <= 10:
		wordMultiplier = 20.0
	case totalFreeWords <= 20:
		wordMultiplier = 15.0
	case totalFreeWords <= 30:
		wordMultiplier = 10.0
	case totalFreeWords <= 50:
		wordMultiplier = 5.0
	default:
		wordMultiplier = 2.0
	}

	var timeMultiplier float64
	switch {
	case generationTime <= 3.0:
		timeMultiplier = 5.0
	case generationTime <= 6.0:
		timeMultiplier = 3.0
	case generationTime <= 10.0:
		timeMultiplier = 1.0
	default:
		timeMultiplier = 0.5
	}

	survivalMultiplier := wordMultiplier * timeMultiplier

	switch {
	case rvcBudget <= 15:
		survivalMultiplier = math.Min(survivalMultiplier, 1.2)
	case rvcBudget <= 30:
		survivalMultiplier = math.Min(survivalMultiplier, 1.5)
	case rvcBudget <= 60:
		survivalMultiplier = math.Min(survivalMultiplier, 1.8)
	case rvcBudget <= 120:
		survivalMultiplier = math.Min(survivalMultiplier, 2.0)
	}

	if qualityScore < 0.6 {
		survivalMultiplier = 1.0
	}

	return baseReward * survivalMultiplier
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
