package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lunacore/luna/internal/arbiter"
	"github.com/lunacore/luna/internal/budget"
	"github.com/lunacore/luna/internal/cfia"
	"github.com/lunacore/luna/internal/inference"
	"github.com/lunacore/luna/internal/lesson"
	"github.com/lunacore/luna/internal/lunaerr"
	"github.com/lunacore/luna/internal/rvc"
	"github.com/lunacore/luna/pkg/llmclient"
	"github.com/lunacore/luna/pkg/observability"
	"github.com/lunacore/luna/pkg/ratelimit"
)

// defaultSessionID scopes rate limiting when a request doesn't carry its own
// SessionID, matching a single-tenant CLI/local deployment.
const defaultSessionID = "default"

const defaultBasePrompt = "You are a helpful assistant operating under a finite token and karma economy."

// Config assembles an Orchestrator from its subsystem configuration.
type Config struct {
	// StateDir holds existential_state.json, cfia_state.json, and the
	// lessons/ shard directory. Required.
	StateDir string

	BasePrompt string

	BudgetParams    budget.Params
	InferenceConfig inference.Config
	CFIASeed        cfia.SeedGenerator

	// LLM is the main completion backend. Required.
	LLM *llmclient.Client
	// ArbiterLLM grades responses against a gold standard; defaults to LLM
	// when nil, matching the reference single-backend deployment.
	ArbiterLLM *llmclient.Client

	// LessonStore persists lessons per CFIA shard; defaults to a FileStore
	// rooted at StateDir/lessons.
	LessonStore lesson.Store
	// Retriever injects a relevant prior lesson ahead of each call; defaults
	// to a TagOverlapRetriever over LessonStore.
	Retriever lesson.Retriever

	Zones arbiter.EmergenceZoneChecker

	// RateLimiter gates outbound calls to LLM/ArbiterLLM ahead of the
	// client's own retry logic. Nil disables admission limiting entirely
	// (the existential economy still bounds usage on its own).
	RateLimiter ratelimit.RateLimiter
}

// Orchestrator runs the full per-request control flow. Handle and the state
// accessors take an internal mutex, so concurrent calls on one instance run
// one at a time.
type Orchestrator struct {
	mu sync.Mutex

	stateDir   string
	basePrompt string

	classifier *rvc.Classifier
	budget     *budget.Budget
	inference  *inference.Controller
	arbiter    *arbiter.Arbiter
	cfia       *cfia.CFIA

	lessons   lesson.Store
	retriever lesson.Retriever

	llm         *llmclient.Client
	rateLimiter ratelimit.RateLimiter

	tracer trace.Tracer
}

// New constructs an Orchestrator, loading persisted Existential/CFIA state
// from cfg.StateDir if present, or initializing fresh Generation-2 state.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.LLM == nil {
		return nil, lunaerr.New(lunaerr.InputValidation, "orchestrator.New", fmt.Errorf("Config.LLM is required"))
	}
	if cfg.StateDir == "" {
		return nil, lunaerr.New(lunaerr.InputValidation, "orchestrator.New", fmt.Errorf("Config.StateDir is required"))
	}
	if err := ensureStateDir(cfg.StateDir); err != nil {
		return nil, lunaerr.Wrap(lunaerr.StateIOError, "orchestrator.New", err)
	}

	params := cfg.BudgetParams
	if params.BaseTokenPool == 0 {
		params = budget.DefaultParams()
	}
	budgetState, err := loadBudgetState(cfg.StateDir, params)
	if err != nil {
		return nil, err
	}

	seed := cfg.CFIASeed
	if seed == nil {
		seed = defaultSeedGenerator
	}
	cfiaState, err := loadCFIAState(cfg.StateDir, seed())
	if err != nil {
		return nil, err
	}

	lessons := cfg.LessonStore
	if lessons == nil {
		fs, err := lesson.NewFileStore(lessonsDirPath(cfg.StateDir))
		if err != nil {
			return nil, lunaerr.Wrap(lunaerr.StateIOError, "orchestrator.New", err)
		}
		lessons = fs
	}

	retriever := cfg.Retriever
	if retriever == nil {
		retriever = lesson.NewTagOverlapRetriever(lessons)
	}

	arbiterLLM := cfg.ArbiterLLM
	if arbiterLLM == nil {
		arbiterLLM = cfg.LLM
	}

	zones := cfg.Zones
	if zones == nil {
		zones = noZones{}
	}

	basePrompt := cfg.BasePrompt
	if basePrompt == "" {
		basePrompt = defaultBasePrompt
	}

	infCfg := cfg.InferenceConfig
	if infCfg.SoftCapTokens == 0 {
		infCfg = inference.DefaultConfig()
	}

	return &Orchestrator{
		stateDir:    cfg.StateDir,
		basePrompt:  basePrompt,
		classifier:  rvc.New(),
		budget:      budget.New(params, budgetState),
		inference:   inference.New(infCfg),
		arbiter:     arbiter.New(&llmGoldStandard{client: arbiterLLM}, &llmJudge{client: arbiterLLM}, zones),
		cfia:        cfia.New(cfiaState, seed),
		lessons:     lessons,
		retriever:   retriever,
		llm:         cfg.LLM,
		rateLimiter: cfg.RateLimiter,
		tracer:      observability.GetTracer("luna.orchestrator"),
	}, nil
}

func defaultSeedGenerator() int { return int(time.Now().UnixNano() % 1_000_000) }

func lessonsDirPath(stateDir string) string {
	return stateDir + "/" + lessonsDirName
}

// Request is one turn of conversation handed to the orchestrator.
type Request struct {
	UserText string
	// SessionID scopes rate limiting; defaults to a single shared session
	// when blank.
	SessionID string
	// TraitHint optionally carries "question_type:emotional_tone" (e.g.
	// "philosophical:curious"); left blank, both are inferred from the RVC
	// assessment.
	TraitHint string
	// SessionHistory is prior turns, oldest first. They are sent to the
	// backend between the system prompt and the user turn, and the last
	// assistant turn's word count sizes the length-aware logit bias.
	SessionHistory []llmclient.Message
}

// Response is the orchestrator's result for one turn, including the
// accounting the caller may want to log or expose via /info.
type Response struct {
	Text string

	Tier            rvc.Tier
	ShouldRespond   bool
	Degraded        bool
	ResourceState   inference.ResourceState
	UtilityScore    float64
	KarmaDelta      float64
	RewardScore     float64
	TokensRemaining int
	KarmaPool       float64
	AgedUp          bool
	Regressed       bool
	GenerationDied  bool
	Reasoning       string
}

// Handle runs the eleven-step control flow for one request: classify,
// assess budget, condition the prompt, retrieve a lesson, bias the logits,
// call the backend, grade the response, account for it, and record what was
// learned.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, span := o.tracer.Start(ctx, "orchestrator.handle")
	defer span.End()

	now := time.Now()
	metrics := observability.GetGlobalMetrics()

	assessment := o.classify(ctx, req.UserText)
	metrics.RecordRequest(ctx, string(assessment.Tier))
	qctx := questionContext(req.TraitHint, assessment)
	karmaScore := o.cfia.State().KarmaPool

	decision := o.budget.Assess(req.UserText, qctx, karmaScore)
	span.SetAttributes(
		attribute.String("luna.tier", string(assessment.Tier)),
		attribute.Bool("luna.should_respond", decision.ShouldRespond),
		attribute.Int("luna.token_budget", decision.TokenBudget),
	)

	if !decision.ShouldRespond {
		return Response{
			Text:            "...",
			Tier:            assessment.Tier,
			ShouldRespond:   false,
			ResourceState:   inference.Debt,
			TokensRemaining: o.budget.State().CurrentTokenPool,
			KarmaPool:       o.cfia.State().KarmaPool,
			Reasoning:       decision.Reasoning,
		}, nil
	}

	tokenPool := o.budget.State().CurrentTokenPool
	budgetCheck := o.inference.PreInferenceBudgetCheck(tokenPool, decision.ExistentialRisk, o.basePrompt)

	systemPrompt := budgetCheck.ConditionedPrompt
	tags := arbiter.ExtractContextTags(req.UserText)
	if prior, ok, err := o.retriever.Retrieve(ctx, req.UserText, tags); err == nil && ok {
		systemPrompt = fmt.Sprintf("%s\n\n[PRIOR LESSON]\nQ: %s\nBest answer: %s", systemPrompt, prior.OriginalPrompt, prior.GoldStandard)
	}

	currentLength := lastAssistantWordCount(req.SessionHistory)
	maxTokens := decision.TokenBudget
	if maxTokens <= 0 || maxTokens > assessment.MaxTokenBudget {
		maxTokens = assessment.MaxTokenBudget
	}
	logitBias := o.inference.GenerateLogitBiasConfig(budgetCheck.ResourceState, currentLength, karmaScore, string(assessment.Tier))

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	if limited, reason := o.rateLimited(ctx, sessionID); limited {
		return Response{
			Text:            "I'm rate limited right now, please try again shortly.",
			Tier:            assessment.Tier,
			ShouldRespond:   true,
			Degraded:        true,
			ResourceState:   budgetCheck.ResourceState,
			TokensRemaining: o.budget.State().CurrentTokenPool,
			KarmaPool:       o.cfia.State().KarmaPool,
			Reasoning:       reason,
		}, nil
	}

	callStart := time.Now()
	completion, degraded := o.complete(ctx, systemPrompt, req, maxTokens, logitBias)
	generationTime := time.Since(callStart).Seconds()
	if generationTime <= 0 {
		generationTime = 0.001
	}

	if o.rateLimiter != nil {
		if err := o.rateLimiter.Record(ctx, ratelimit.ScopeSession, sessionID, int64(o.inference.CompletionTokenCount(completion)), 1); err != nil {
			span.RecordError(lunaerr.Wrap(lunaerr.BackendUnavailable, "record rate limit usage", err))
		}
	}

	assess := o.arbiter.AssessResponse(ctx, req.UserText, completion, o.inference.TokenCost(completion), assessment.MaxTokenBudget,
		rvc.ValidateEfficiency(assessment, o.inference.CompletionTokenCount(completion), 1.0).Grade, now, req.TraitHint)

	tokenCost := o.inference.TokenCost(completion)
	reward := o.inference.RewardScore(assess.UtilityScore, generationTime, assessment.TargetTokenCount, completion)

	result := o.budget.ProcessResponseResult(assess.UtilityScore, tokenCost, generationTime, qctx, now)
	if result.AgedUp {
		metrics.RecordAgeUp(ctx)
	}
	if result.Regressed {
		metrics.RecordRegression(ctx)
	}
	metrics.RecordTokenCost(ctx, tokenCost)
	metrics.RecordKarmaDelta(ctx, assess.KarmaDelta)
	metrics.SetTokenPool(float64(result.TokensRemaining))

	karmaUpdate := o.recordLesson(ctx, assess, now)
	metrics.SetKarmaPool(karmaUpdate.NewKarma)

	if err := o.persist(); err != nil {
		return Response{}, err
	}

	if !degraded {
		metrics.RecordLLMCall(ctx, "luna", time.Since(callStart), o.inference.CompletionTokenCount(req.UserText), o.inference.CompletionTokenCount(completion), nil)
	}

	return Response{
		Text:            completion,
		Tier:            assessment.Tier,
		ShouldRespond:   true,
		Degraded:        degraded,
		ResourceState:   budgetCheck.ResourceState,
		UtilityScore:    assess.UtilityScore,
		KarmaDelta:      assess.KarmaDelta,
		RewardScore:     reward,
		TokensRemaining: result.TokensRemaining,
		KarmaPool:       o.cfia.State().KarmaPool,
		AgedUp:          result.AgedUp,
		Regressed:       result.Regressed,
		GenerationDied:  karmaUpdate.GenerationDied,
		Reasoning:       assess.Reasoning,
	}, nil
}

// BudgetState returns a copy of the current Existential Budget state, for
// callers that want to report it (e.g. an `info` CLI command) without
// issuing a request.
func (o *Orchestrator) BudgetState() budget.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.budget.State()
}

// CFIAState returns a copy of the current CFIA state.
func (o *Orchestrator) CFIAState() cfia.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfia.State()
}

// ShadowScoreReport returns a summary of the Arbiter's diagnostic shadow
// score ledger, classifying past responses as empathy and/or efficiency
// choices. It is never consumed by the response path.
func (o *Orchestrator) ShadowScoreReport() arbiter.ShadowScoreReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.arbiter.GetShadowScoreReport()
}

// rateLimited checks the configured admission limiter ahead of the backend
// call. A nil limiter or a check error never blocks a request; the
// existential economy is the backstop, not this layer.
func (o *Orchestrator) rateLimited(ctx context.Context, sessionID string) (bool, string) {
	if o.rateLimiter == nil {
		return false, ""
	}
	result, err := o.rateLimiter.Check(ctx, ratelimit.ScopeSession, sessionID)
	if err != nil || result == nil {
		return false, ""
	}
	if !result.Allowed {
		return true, result.Reason
	}
	return false, ""
}

func (o *Orchestrator) classify(ctx context.Context, text string) rvc.Assessment {
	_, span := o.tracer.Start(ctx, "orchestrator.classify")
	defer span.End()
	return o.classifier.Classify(text)
}

func (o *Orchestrator) complete(ctx context.Context, systemPrompt string, req Request, maxTokens int, bias inference.LogitBias) (string, bool) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.complete")
	defer span.End()

	messages := make([]llmclient.Message, 0, len(req.SessionHistory)+2)
	messages = append(messages, llmclient.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, req.SessionHistory...)
	messages = append(messages, llmclient.Message{Role: "user", Content: req.UserText})

	resp, err := o.llm.Complete(ctx, llmclient.Request{
		Messages:  messages,
		MaxTokens: maxTokens,
		LogitBias: bias.TokenBias,
	})
	if err != nil {
		span.RecordError(err)
		observability.GetGlobalMetrics().RecordLLMCall(ctx, "luna", 0, 0, 0, err)
		return "I'm having trouble forming a response right now.", true
	}
	return resp.Content, false
}

func lastAssistantWordCount(history []llmclient.Message) int {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "assistant" {
			return len(strings.Fields(history[i].Content))
		}
	}
	return 0
}

// questionContext infers a budget.QuestionContext from an explicit
// "type:tone" trait hint, falling back to the RVC assessment's signals.
func questionContext(traitHint string, a rvc.Assessment) budget.QuestionContext {
	if qt, tone, ok := strings.Cut(traitHint, ":"); ok {
		return budget.QuestionContext{QuestionType: qt, EmotionalTone: tone}
	}

	qc := budget.QuestionContext{QuestionType: "standard", EmotionalTone: "neutral"}
	switch a.Tier {
	case rvc.Maximum, rvc.Critical:
		qc.QuestionType = "philosophical"
	}
	if a.EmotionalStakes > 0.3 {
		qc.QuestionType = "emotional"
		qc.EmotionalTone = "vulnerable"
	}
	return qc
}

// recordLesson commits the Arbiter's lesson to the CFIA-managed shard cache,
// splitting the target shard if the addition would exceed its granularity
// threshold, then updates the generation's karma pool.
func (o *Orchestrator) recordLesson(ctx context.Context, assess arbiter.Assessment, now time.Time) cfia.KarmaUpdate {
	_, span := o.tracer.Start(ctx, "orchestrator.record_lesson")
	defer span.End()

	targetFile, created := o.cfia.SelectTargetFile()
	if created {
		o.cfia.RegisterNewFile(targetFile, now)
	}

	l := lesson.New(targetFile, assess.Lesson.OriginalPrompt, assess.Lesson.Response, assess.Lesson.GoldStandard,
		assess.Lesson.UtilityScore, assess.Lesson.KarmaDelta, assess.Lesson.ContextTags, assess.Lesson.Timestamp)
	lessonKB := lessonSizeKB(l)

	metrics := observability.GetGlobalMetrics()

	plan := o.cfia.PlanLessonAddition(targetFile, lessonKB)
	if plan.SplitRequired {
		metrics.RecordCFIASplit(ctx)
		if err := o.splitShard(ctx, targetFile, l, lessonKB, now); err != nil {
			span.RecordError(err)
		}
	} else {
		if err := o.lessons.AppendLesson(ctx, targetFile, l); err != nil {
			span.RecordError(lunaerr.Wrap(lunaerr.StateIOError, "append lesson", err))
		} else {
			o.cfia.CommitSimpleAddition(targetFile, lessonKB, now)
		}
	}

	karmaUpdate := o.cfia.UpdateKarmaPool(assess.KarmaDelta, now)
	span.SetAttributes(
		attribute.Float64("luna.karma_pool", karmaUpdate.NewKarma),
		attribute.Bool("luna.generation_died", karmaUpdate.GenerationDied),
		attribute.Bool("luna.generation_success", karmaUpdate.GenerationSuccess),
	)
	if karmaUpdate.GenerationDied {
		metrics.RecordGenerationalDeath(ctx)
	}
	if karmaUpdate.GenerationSuccess {
		metrics.RecordGenerationalSuccess(ctx)
	}
	return karmaUpdate
}

// splitShard partitions a shard's existing lessons plus the new one into two
// halves (oldest-first, so each half stays contiguous) and commits the split
// to CFIA before deleting the original shard.
func (o *Orchestrator) splitShard(ctx context.Context, oldFileID string, newLesson lesson.Lesson, newLessonKB float64, now time.Time) error {
	existing, err := o.lessons.LoadShard(ctx, oldFileID)
	if err != nil {
		return lunaerr.Wrap(lunaerr.CFIASplitError, "load shard for split", err)
	}

	combined := append(append([]lesson.Lesson{}, existing...), newLesson)
	sort.Slice(combined, func(i, j int) bool { return combined[i].Timestamp.Before(combined[j].Timestamp) })

	mid := len(combined) / 2
	halfA, halfB := combined[:mid], combined[mid:]

	sizeA, sizeB := lessonsSizeKB(halfA), lessonsSizeKB(halfB)
	if len(halfA) == 0 {
		sizeA = 0
	}

	result := o.cfia.CommitSplit(oldFileID, sizeA, sizeB, len(halfA), len(halfB), now)

	if err := o.lessons.WriteShard(ctx, result.NewFileA, halfA); err != nil {
		return lunaerr.Wrap(lunaerr.CFIASplitError, "write split shard A", err)
	}
	if err := o.lessons.WriteShard(ctx, result.NewFileB, halfB); err != nil {
		return lunaerr.Wrap(lunaerr.CFIASplitError, "write split shard B", err)
	}
	if err := o.lessons.DeleteShard(ctx, result.FileDeleted); err != nil {
		return lunaerr.Wrap(lunaerr.CFIASplitError, "delete split source shard", err)
	}
	return nil
}

func lessonSizeKB(l lesson.Lesson) float64 {
	data, err := json.Marshal(l)
	if err != nil {
		return 0.1
	}
	return float64(len(data)) / 1024.0
}

func lessonsSizeKB(ls []lesson.Lesson) float64 {
	total := 0.0
	for _, l := range ls {
		total += lessonSizeKB(l)
	}
	return total
}

// persist durably writes Existential and CFIA state. Lesson shards are
// already durable by the time recordLesson returns, one file-replace per
// shard write.
func (o *Orchestrator) persist() error {
	if err := saveBudgetState(o.stateDir, o.budget.State()); err != nil {
		return err
	}
	if err := saveCFIAState(o.stateDir, o.cfia.State()); err != nil {
		return err
	}
	return nil
}
