package pipeline

import (
	"fmt"
	"sort"

	"github.com/sahilm/fuzzy"
)

// SectionSpec describes one report section: its presentation title and the
// system prompts for the worker that drafts it and the checker that judges it.
type SectionSpec struct {
	ID            string
	Title         string
	WorkerSystem  string
	CheckerSystem string
}

const verdictSchema = `Return JSON: {"passed": bool, "feedback": [{"issue": str, "rule_id": str, "suggestion": str}]}`

const balanceSheetWorkerSystem = `You are the Balance Sheet Analyst. Your task is to extract and analyze balance sheet data.

CORE RESPONSIBILITIES:
- Extract key balance sheet items with accurate figures
- Check asset/liability consistency and verify totals balance
- Identify off-balance obligations and working-capital changes
- Highlight liquidity ratios and financial position strength

OUTPUT FORMAT:
- Concise markdown with key tables and bullet insights
- Keep units consistent (specify millions, billions, etc.)
- Include period-over-period comparisons when available

REVISION MODE:
When revising based on feedback, focus on the specific issues mentioned while maintaining overall structure and analysis quality.`

const incomeStatementWorkerSystem = `You are the Income Statement Analyst. Your task is to analyze earnings and profitability.

CORE RESPONSIBILITIES:
- Focus on revenue quality, growth trends, and margin analysis
- Examine gross margin logic and operational efficiency
- Analyze alignment with receivables trends and cash conversion
- Identify one-time items and normalized earnings

OUTPUT FORMAT:
- Concise markdown with key KPIs and commentary
- Include revenue breakdown by segments if available
- Highlight margin trends and profitability drivers

REVISION MODE:
When revising based on feedback, address specific calculation errors or missing analysis while preserving the overall narrative flow.`

const cashFlowsWorkerSystem = `You are the Cash Flow Analyst. Your task is to analyze cash generation and capital allocation.

CORE RESPONSIBILITIES:
- Reconcile Net Income vs Cash Flow from Operations (CFO)
- Highlight CapEx trends and free cash flow generation
- Analyze non-cash adjustments and working capital impacts
- Assess cash conversion efficiency and liquidity

OUTPUT FORMAT:
- Concise markdown with bullet points for key insights
- Include cash flow bridge analysis when possible
- Focus on operational vs. non-operational cash flows

REVISION MODE:
When revising based on feedback, correct any reconciliation errors or missing components while maintaining analytical depth.`

const summaryWorkerSystem = `You are the Executive Summary Analyst. Distill the document into a short
investor-facing summary: what the company does, headline results for the
period, and the two or three developments that matter most.

OUTPUT FORMAT:
- Concise markdown, at most five short paragraphs or bullets
- Lead with the single most important takeaway

REVISION MODE:
When revising based on feedback, tighten and correct rather than expand.`

const risksWorkerSystem = `You are the Risk Analyst. Surface the material risks the document discloses
or implies: liquidity, concentration, regulatory, operational and market risks.

OUTPUT FORMAT:
- Concise markdown bullet list, one risk per bullet with a one-line rationale
- Order by severity

REVISION MODE:
When revising based on feedback, address the specific gaps named while keeping the ordering discipline.`

// genericWorkerSystem covers sections with no dedicated analyst prompt.
const genericWorkerSystem = `You are a financial report section analyst. Draft the %q section of an
investor-facing report from the source document.

OUTPUT FORMAT:
- Concise markdown with bullet insights and tables where useful
- Keep units consistent and state them explicitly

REVISION MODE:
When revising based on feedback, focus on the specific issues mentioned.`

const plannerSystem = `You are the Planner Agent for a financial-report analysis pipeline.
Decompose the task into explicit report sections.
Only output a compact JSON with keys: tasks[].`

const plannerUser = `Context:
- The company document text is provided below (may be partial or noisy).

Goal:
Return a JSON listing which sections to work on, picked from: %s.
Example:
{"tasks": ["balance_sheet", "income_statement", "cash_flows"]}

Document sample:
%s`

const reviewerSystem = `You are the Global Consistency Checker. Verify cross-section consistency,
terminology normalization, and surface document-wide red flags.
Return JSON: {"suggestions": [{"area": str, "action": str}]}`

func checkerSystem(noun string) string {
	return fmt.Sprintf(`You are the %s Checker. Validate the draft against the provided rules and
accounting logic.
%s
Keep feedback actionable and minimal.`, noun, verdictSchema)
}

// Registry resolves section IDs to their specs. Unknown IDs get a generic
// spec so callers may request arbitrary sections; Suggest helps the CLI point
// users at a known section on likely typos.
type Registry struct {
	specs map[string]SectionSpec
}

// NewRegistry returns the built-in section registry.
func NewRegistry() *Registry {
	specs := map[string]SectionSpec{
		"balance_sheet": {
			ID:            "balance_sheet",
			Title:         "Balance Sheet",
			WorkerSystem:  balanceSheetWorkerSystem,
			CheckerSystem: checkerSystem("Balance Sheet"),
		},
		"income_statement": {
			ID:            "income_statement",
			Title:         "Income Statement",
			WorkerSystem:  incomeStatementWorkerSystem,
			CheckerSystem: checkerSystem("Income Statement"),
		},
		"cash_flows": {
			ID:            "cash_flows",
			Title:         "Cash Flows",
			WorkerSystem:  cashFlowsWorkerSystem,
			CheckerSystem: checkerSystem("Cash Flows"),
		},
		"summary": {
			ID:            "summary",
			Title:         "Executive Summary",
			WorkerSystem:  summaryWorkerSystem,
			CheckerSystem: checkerSystem("Executive Summary"),
		},
		"risks": {
			ID:            "risks",
			Title:         "Risk Flags",
			WorkerSystem:  risksWorkerSystem,
			CheckerSystem: checkerSystem("Risk Flags"),
		},
	}
	return &Registry{specs: specs}
}

// Resolve returns the SectionSpec for a section ID, falling back to a
// generic analyst template for unknown sections.
func (r *Registry) Resolve(sectionID string) SectionSpec {
	if spec, ok := r.specs[sectionID]; ok {
		return spec
	}
	return SectionSpec{
		ID:            sectionID,
		Title:         sectionID,
		WorkerSystem:  fmt.Sprintf(genericWorkerSystem, sectionID),
		CheckerSystem: checkerSystem(sectionID),
	}
}

// Known reports whether the section has a dedicated prompt set.
func (r *Registry) Known(sectionID string) bool {
	_, ok := r.specs[sectionID]
	return ok
}

// KnownIDs returns the registered section IDs, sorted.
func (r *Registry) KnownIDs() []string {
	ids := make([]string, 0, len(r.specs))
	for id := range r.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Titles returns the title map for the registered sections plus the given
// extra IDs resolved through the generic fallback.
func (r *Registry) Titles(sectionIDs []string) map[string]string {
	titles := make(map[string]string, len(sectionIDs))
	for _, id := range sectionIDs {
		titles[id] = r.Resolve(id).Title
	}
	return titles
}

// Suggest returns known section IDs ranked by fuzzy similarity to input,
// best first. Used for "did you mean" hints on unknown CLI sections.
func (r *Registry) Suggest(input string) []string {
	matches := fuzzy.Find(input, r.KnownIDs())
	suggestions := make([]string, 0, len(matches))
	for _, match := range matches {
		suggestions = append(suggestions, match.Str)
	}
	return suggestions
}
