package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"argus/internal/errs"
	"argus/internal/llm"
	"argus/internal/model"
)

// JSONClient is the subset of the LLM Client both adapters below need.
type JSONClient interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
	GenerateEmbedding(ctx context.Context, text string, dims int32) ([]float64, error)
}

var classifySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"is_life_safety": {Type: genai.TypeBoolean},
		"is_promotional": {Type: genai.TypeBoolean},
	},
	Required: []string{"is_life_safety", "is_promotional"},
}

var topicRelevantSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"relevant": {Type: genai.TypeBoolean},
	},
	Required: []string{"relevant"},
}

var threatLocationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"impacted_regions": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"continent": {Type: genai.TypeString},
					"country":   {Type: genai.TypeString},
					"city":      {Type: genai.TypeString},
				},
				Required: []string{"continent"},
			},
		},
	},
	Required: []string{"impacted_regions"},
}

// LLMClassifier implements Classifier against a JSONClient: the
// life-safety/promotional judgment, per-topic relevance check, and
// threat-location lookup the Decision Worker needs.
type LLMClassifier struct {
	llm JSONClient
}

func NewLLMClassifier(c JSONClient) *LLMClassifier {
	return &LLMClassifier{llm: c}
}

const classifyPrompt = `Judge the following article along two dimensions. is_life_safety is true if the article concerns an active threat to human life or safety (disasters, attacks, public health emergencies). is_promotional is true if the article is primarily an advertisement or sponsored content.

Title: %s

Text:
%s`

func (l *LLMClassifier) Classify(ctx context.Context, title, body string) (Classification, error) {
	raw, err := l.llm.GenerateJSON(ctx, fmt.Sprintf(classifyPrompt, title, body), classifySchema)
	if err != nil {
		return Classification{}, err
	}
	var resp struct {
		IsLifeSafety  bool `json:"is_life_safety"`
		IsPromotional bool `json:"is_promotional"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return Classification{}, errs.Validationf("parsing classification response: %v", err).WithField("raw", raw)
	}
	return Classification{IsLifeSafety: resp.IsLifeSafety, IsPromotional: resp.IsPromotional}, nil
}

const topicRelevantPrompt = `Does the following article substantively cover the topic %q? Answer with "relevant": true only if the article is primarily about that topic, not a passing mention.

Title: %s

Text:
%s`

func (l *LLMClassifier) TopicRelevant(ctx context.Context, title, body, topic string) (bool, error) {
	raw, err := l.llm.GenerateJSON(ctx, fmt.Sprintf(topicRelevantPrompt, topic, title, body), topicRelevantSchema)
	if err != nil {
		return false, err
	}
	var resp struct {
		Relevant bool `json:"relevant"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return false, errs.Validationf("parsing topic relevance response: %v", err).WithField("raw", raw)
	}
	return resp.Relevant, nil
}

const threatLocationPrompt = `The following article concerns a life-safety threat. Identify the geographic regions it impacts as impacted_regions, each with a continent and, where the article specifies them, a country and city.

Title: %s

Text:
%s`

func (l *LLMClassifier) ThreatLocation(ctx context.Context, title, body string) (ThreatLocation, error) {
	raw, err := l.llm.GenerateJSON(ctx, fmt.Sprintf(threatLocationPrompt, title, body), threatLocationSchema)
	if err != nil {
		return ThreatLocation{}, err
	}
	var resp struct {
		ImpactedRegions []struct {
			Continent string `json:"continent"`
			Country   string `json:"country"`
			City      string `json:"city"`
		} `json:"impacted_regions"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return ThreatLocation{}, errs.Validationf("parsing threat location response: %v", err).WithField("raw", raw)
	}
	regions := make([]ImpactedRegion, 0, len(resp.ImpactedRegions))
	for _, r := range resp.ImpactedRegions {
		regions = append(regions, ImpactedRegion{Continent: r.Continent, Country: r.Country, City: r.City})
	}
	return ThreatLocation{ImpactedRegions: regions}, nil
}

// LLMAnalyzer implements Analyzer: the full analysis/summary/quality-score
// set via one structured call, plus the embedding via a second.
type LLMAnalyzer struct {
	llm  JSONClient
	dims int32
}

func NewLLMAnalyzer(c JSONClient, dims int32) *LLMAnalyzer {
	if dims <= 0 {
		dims = 768
	}
	return &LLMAnalyzer{llm: c, dims: dims}
}

var analyzeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"analysis":           {Type: genai.TypeString},
		"summary":            {Type: genai.TypeString},
		"tiny_summary":       {Type: genai.TypeString},
		"tiny_title":         {Type: genai.TypeString},
		"eli5":               {Type: genai.TypeString},
		"readability":        {Type: genai.TypeNumber},
		"source_reliability": {Type: genai.TypeNumber},
		"depth":              {Type: genai.TypeNumber},
	},
	Required: []string{"analysis", "summary", "tiny_summary", "tiny_title", "eli5", "readability", "source_reliability", "depth"},
}

const analyzePrompt = `Analyze the following article and produce, as JSON: a clear factual "analysis" (2-3 paragraphs), a one-sentence "summary", a headline-length "tiny_summary", a short "tiny_title", a plain-language "eli5" explanation for a young reader, and three quality scores from 0 to 1: "readability", "source_reliability", "depth".

Title: %s

Text:
%s`

func (a *LLMAnalyzer) Analyze(ctx context.Context, title, body string) (AnalysisResult, error) {
	raw, err := a.llm.GenerateJSON(ctx, fmt.Sprintf(analyzePrompt, title, body), analyzeSchema)
	if err != nil {
		return AnalysisResult{}, err
	}
	var resp struct {
		Analysis          string  `json:"analysis"`
		Summary           string  `json:"summary"`
		TinySummary       string  `json:"tiny_summary"`
		TinyTitle         string  `json:"tiny_title"`
		ELI5              string  `json:"eli5"`
		Readability       float64 `json:"readability"`
		SourceReliability float64 `json:"source_reliability"`
		Depth             float64 `json:"depth"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return AnalysisResult{}, errs.Validationf("parsing analysis response: %v", err).WithField("raw", raw)
	}
	return AnalysisResult{
		Text:        resp.Analysis,
		Summary:     resp.Summary,
		TinySummary: resp.TinySummary,
		TinyTitle:   resp.TinyTitle,
		ELI5:        resp.ELI5,
		QualityScores: model.QualityScores{
			Readability:       resp.Readability,
			SourceReliability: resp.SourceReliability,
			Depth:             resp.Depth,
		},
	}, nil
}

func (a *LLMAnalyzer) Embed(ctx context.Context, text string) ([]float64, error) {
	return a.llm.GenerateEmbedding(ctx, text, a.dims)
}

// LLMSummaryGenerator implements clustering.SummaryGenerator: folds member
// article summaries into one cluster summary.
type LLMSummaryGenerator struct {
	llm JSONClient
}

func NewLLMSummaryGenerator(c JSONClient) *LLMSummaryGenerator {
	return &LLMSummaryGenerator{llm: c}
}

func (s *LLMSummaryGenerator) Summarize(ctx context.Context, articleSummaries []string) (string, error) {
	prompt := "Combine the following article summaries into one cohesive cluster summary (2-3 sentences):\n\n" + strings.Join(articleSummaries, "\n- ")
	return s.llm.GenerateText(ctx, prompt)
}

var _ JSONClient = (*llm.Client)(nil)

// StoreTextExtractor implements TextExtractor by reading the article's
// already-ingested body; RSS fetching and HTML readability extraction
// happen upstream of the decision queue and are out of this worker's scope.
type StoreTextExtractor struct {
	articles ArticleStore
}

func NewStoreTextExtractor(articles ArticleStore) *StoreTextExtractor {
	return &StoreTextExtractor{articles: articles}
}

func (s *StoreTextExtractor) Extract(ctx context.Context, articleID int64) (string, error) {
	a, err := s.articles.Get(ctx, articleID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(a.Body) == "" {
		return "", errs.Dataf("article %d has no ingested body", articleID)
	}
	return a.Body, nil
}
