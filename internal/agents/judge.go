package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/internal/telemetry"
	"github.com/aadityasp/agreegraph/models"
	"github.com/aadityasp/agreegraph/provider"
	"github.com/aadityasp/agreegraph/utils"
)

const judgePrompt = `You are an agreement judge. Compare the claims in the original text against the fetched evidence and the knowledge graph, and decide whether the sources agree.

Original text:
%s

Fetched evidence:
%s

Knowledge graph:
%s

Respond with a JSON object with exactly these fields:
- "agreement_status": one of "Agree", "Disagree", "Partial"
- "summary": a short explanation of the verdict
- "search_suggestions": an array of follow-up search queries (may be empty)`

// JudgeAgent runs the final stage: a single cross-source agreement verdict
// over the run's accumulated evidence.
type JudgeAgent struct {
	llm         provider.Provider
	model       string
	temperature float64
	logger      *log.Logger
}

func NewJudgeAgent(llm provider.Provider, llmCfg config.LLMConfig, logger *log.Logger) *JudgeAgent {
	if logger == nil {
		logger = log.New(log.Writer(), "[JUDGE] ", log.LstdFlags)
	}
	return &JudgeAgent{
		llm:         llm,
		model:       llmCfg.JudgeModel,
		temperature: llmCfg.JudgeTemp,
		logger:      logger,
	}
}

// Judge produces the agreement verdict. The result is never cached: the
// verdict depends on the full run context, and rerunning judgment on fresh
// evidence is the point of the stage. Unusable model output degrades to a
// Partial verdict explaining the failure; the failure comes back as a
// non-nil error so callers can record the degradation.
func (a *JudgeAgent) Judge(ctx context.Context, state *models.PipelineState, extra telemetry.Fields) (models.JudgeResult, error) {
	evidence, _ := json.Marshal(state.FetchedContext)
	graph, _ := json.Marshal(state.KnowledgeGraph)

	prompt := fmt.Sprintf(judgePrompt, state.InputText, string(evidence), string(graph))
	raw, err := a.llm.Generate(ctx, prompt, a.model, map[string]interface{}{
		"temperature": a.temperature,
		"json":        true,
	})
	if err != nil {
		a.logger.Printf("judgment call failed: %v", err)
		return fallbackVerdict(fmt.Sprintf("Judgment unavailable: %v", err)), fmt.Errorf("judgment: %w", err)
	}

	result, err := a.parse(raw)
	if err != nil {
		a.logger.Printf("unparseable judgment output: %v", err)
		fallback := fallbackVerdict("Judgment produced no usable verdict; evidence was collected but could not be evaluated.")
		return fallback, fmt.Errorf("judgment: %w", err)
	}
	extra["agreement_status"] = string(result.AgreementStatus)
	return result, nil
}

func (a *JudgeAgent) parse(raw string) (models.JudgeResult, error) {
	payload, err := utils.ExtractJSON(raw)
	if err != nil {
		return models.JudgeResult{}, err
	}
	var result models.JudgeResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return models.JudgeResult{}, fmt.Errorf("decoding verdict: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(string(result.AgreementStatus))) {
	case "agree":
		result.AgreementStatus = models.AgreementAgree
	case "disagree":
		result.AgreementStatus = models.AgreementDisagree
	case "partial":
		result.AgreementStatus = models.AgreementPartial
	default:
		return models.JudgeResult{}, fmt.Errorf("invalid agreement_status %q", result.AgreementStatus)
	}
	if result.SearchSuggestions == nil {
		result.SearchSuggestions = []string{}
	}
	return result, nil
}

func fallbackVerdict(summary string) models.JudgeResult {
	return models.JudgeResult{
		AgreementStatus:   models.AgreementPartial,
		Summary:           summary,
		SearchSuggestions: []string{},
	}
}
