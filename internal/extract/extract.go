// Package extract implements Argus's Entity Extractor (component E):
// asking the LLM Client for the named entities in an article's analyzed
// text, validating its structured response, and upserting the survivors
// into the Entity Normalizer's backing tables.
package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"argus/internal/alias"
	"argus/internal/entity"
	"argus/internal/errs"
	"argus/internal/model"
)

// schema describes the structured JSON response the LLM Client is asked to
// produce: an array of {name, entity_type, importance} objects.
var schema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"entities": {
			Type:        genai.TypeArray,
			Description: "Named entities mentioned in the article",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name": {
						Type:        genai.TypeString,
						Description: "The entity's surface form as it appears in the text",
					},
					"entity_type": {
						Type:        genai.TypeString,
						Description: "One of PERSON, ORGANIZATION, LOCATION, EVENT, PRODUCT",
					},
					"importance": {
						Type:        genai.TypeString,
						Description: "One of PRIMARY, SECONDARY, MENTIONED",
					},
				},
				Required: []string{"name", "entity_type", "importance"},
			},
		},
	},
	Required: []string{"entities"},
}

// rawEntity is the wire shape returned by the model. The schema asks for
// entity_type, but the model may emit type instead; UnmarshalJSON aliases
// the latter to the former so either spelling is accepted.
type rawEntity struct {
	Name       string `json:"name"`
	EntityType string `json:"entity_type"`
	Importance string `json:"importance"`
}

func (r *rawEntity) UnmarshalJSON(data []byte) error {
	var wire struct {
		Name       string `json:"name"`
		EntityType string `json:"entity_type"`
		Type       string `json:"type"`
		Importance string `json:"importance"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Name = wire.Name
	r.Importance = wire.Importance
	r.EntityType = wire.EntityType
	if r.EntityType == "" {
		r.EntityType = wire.Type
	}
	return nil
}

type rawResponse struct {
	Entities []rawEntity `json:"entities"`
}

// Mention is one validated entity mention pulled from an article, before
// normalization/matching against the Entity table.
type Mention struct {
	Name       string
	Type       model.EntityType
	Importance model.Importance
}

var validTypes = map[string]model.EntityType{
	"PERSON": model.EntityPerson, "ORGANIZATION": model.EntityOrganization,
	"LOCATION": model.EntityLocation, "EVENT": model.EntityEvent, "PRODUCT": model.EntityProduct,
}

var validImportances = map[string]model.Importance{
	"PRIMARY": model.ImportancePrimary, "SECONDARY": model.ImportanceSecondary, "MENTIONED": model.ImportanceMentioned,
}

// JSONGenerator is the subset of the LLM Client's surface the extractor needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// Extractor pulls entity mentions out of article text via the LLM Client,
// then resolves each mention to a stable entity ID through the Entity
// Normalizer (component C) and Alias Repository (component D).
type Extractor struct {
	llm     JSONGenerator
	matcher *entity.Matcher
	store   EntityStore
}

// EntityStore is the Persistent Store surface the extractor writes
// resolved entities and links through.
type EntityStore interface {
	Upsert(ctx context.Context, canonicalName, normalizedForm string, typ model.EntityType) (*model.Entity, error)
	ByType(ctx context.Context, typ model.EntityType) ([]*model.Entity, error)
	LinkArticle(ctx context.Context, articleID, entityID int64, importance model.Importance) error
}

func New(llm JSONGenerator, matcher *entity.Matcher, store EntityStore) *Extractor {
	return &Extractor{llm: llm, matcher: matcher, store: store}
}

const prompt = `Identify the named entities mentioned in the following article. For each entity give its surface name as it appears in the text, its type (PERSON, ORGANIZATION, LOCATION, EVENT, or PRODUCT), and its importance to the article (PRIMARY if the article is centrally about it, SECONDARY if it plays a supporting role, MENTIONED if it's referenced only in passing).

Title: %s

Text:
%s`

// Extract calls the LLM, validates its response, and returns the
// surviving mentions. Mentions with an unknown entity_type are dropped; a
// missing or unknown importance defaults to MENTIONED.
func (e *Extractor) Extract(ctx context.Context, title, text string) ([]Mention, error) {
	raw, err := e.llm.GenerateJSON(ctx, fmt.Sprintf(prompt, title, text), schema)
	if err != nil {
		return nil, err
	}

	var resp rawResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, errs.Validationf("parsing entity extraction response: %v", err).WithField("raw", raw)
	}

	var out []Mention
	for _, re := range resp.Entities {
		typ, ok := validTypes[re.EntityType]
		if !ok {
			continue // unknown type: drop rather than guess
		}
		if !alias.IsValidCandidate(re.Name) {
			continue // fails the same validity gate the Alias Repository applies
		}
		importance, ok := validImportances[re.Importance]
		if !ok {
			importance = model.ImportanceMentioned
		}
		out = append(out, Mention{Name: re.Name, Type: typ, Importance: importance})
	}
	return out, nil
}

// Resolve normalizes and matches each mention against known entities,
// upserting a new Entity row when nothing matches, and links the result to
// articleID with its importance.
func (e *Extractor) Resolve(ctx context.Context, articleID int64, mentions []Mention) ([]int64, error) {
	var ids []int64
	for _, m := range mentions {
		normalized := entity.NormalizeWithVariants(m.Name)

		candidates, err := e.store.ByType(ctx, m.Type)
		if err != nil {
			return nil, err
		}

		var resolvedName string
		resolvedForm := normalized
		matchedExisting := false
		for _, cand := range candidates {
			decision, err := e.matcher.Match(ctx, m.Name, normalized, cand.CanonicalName, cand.NormalizedForm, m.Type)
			if err != nil {
				return nil, err
			}
			if decision.Match {
				resolvedName = cand.CanonicalName
				resolvedForm = cand.NormalizedForm
				matchedExisting = true
				break
			}
		}
		if !matchedExisting {
			resolvedName = m.Name
		}

		ent, err := e.store.Upsert(ctx, resolvedName, resolvedForm, m.Type)
		if err != nil {
			return nil, err
		}
		if err := e.store.LinkArticle(ctx, articleID, ent.ID, m.Importance); err != nil {
			return nil, err
		}
		ids = append(ids, ent.ID)
	}
	return ids, nil
}
