package extract

import (
	"context"
	"testing"

	"google.golang.org/genai"

	"argus/internal/entity"
	"argus/internal/model"
)

type fakeJSONGenerator struct {
	raw string
	err error
}

func (f *fakeJSONGenerator) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	return f.raw, f.err
}

type fakeEntityStore struct {
	byType   map[model.EntityType][]*model.Entity
	upserted []*model.Entity
	links    []int64
	nextID   int64
}

func newFakeEntityStore() *fakeEntityStore {
	return &fakeEntityStore{byType: map[model.EntityType][]*model.Entity{}}
}

func (s *fakeEntityStore) Upsert(ctx context.Context, canonicalName, normalizedForm string, typ model.EntityType) (*model.Entity, error) {
	for _, e := range s.byType[typ] {
		if e.NormalizedForm == normalizedForm {
			return e, nil
		}
	}
	s.nextID++
	e := &model.Entity{ID: s.nextID, CanonicalName: canonicalName, NormalizedForm: normalizedForm, Type: typ}
	s.byType[typ] = append(s.byType[typ], e)
	s.upserted = append(s.upserted, e)
	return e, nil
}

func (s *fakeEntityStore) ByType(ctx context.Context, typ model.EntityType) ([]*model.Entity, error) {
	return s.byType[typ], nil
}

func (s *fakeEntityStore) LinkArticle(ctx context.Context, articleID, entityID int64, importance model.Importance) error {
	s.links = append(s.links, entityID)
	return nil
}

func TestExtractDropsUnknownTypeAndDefaultsMissingImportance(t *testing.T) {
	raw := `{"entities":[
		{"name":"Acme Corp","entity_type":"ORGANIZATION","importance":"PRIMARY"},
		{"name":"Flux Capacitor","entity_type":"GADGET","importance":"PRIMARY"},
		{"name":"Jane Doe","entity_type":"PERSON","importance":"NOT_A_LEVEL"}
	]}`
	e := New(&fakeJSONGenerator{raw: raw}, nil, nil)
	mentions, err := e.Extract(context.Background(), "title", "text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(mentions) != 2 {
		t.Fatalf("expected 2 surviving mentions (unknown type dropped), got %d: %+v", len(mentions), mentions)
	}
	if mentions[0].Name != "Acme Corp" || mentions[0].Importance != model.ImportancePrimary {
		t.Errorf("mention 0 = %+v", mentions[0])
	}
	if mentions[1].Name != "Jane Doe" || mentions[1].Importance != model.ImportanceMentioned {
		t.Errorf("expected a missing/invalid importance to default to MENTIONED, got %+v", mentions[1])
	}
}

func TestExtractAliasesTypeFieldToEntityType(t *testing.T) {
	raw := `{"entities":[{"name":"Acme Corp","type":"ORGANIZATION","importance":"PRIMARY"}]}`
	e := New(&fakeJSONGenerator{raw: raw}, nil, nil)
	mentions, err := e.Extract(context.Background(), "title", "text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(mentions) != 1 || mentions[0].Type != model.EntityOrganization {
		t.Fatalf("expected a response using \"type\" instead of \"entity_type\" to still resolve, got %+v", mentions)
	}
}

func TestExtractRejectsMalformedJSON(t *testing.T) {
	e := New(&fakeJSONGenerator{raw: "not json"}, nil, nil)
	if _, err := e.Extract(context.Background(), "t", "x"); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestResolveUpsertsNewEntityWhenNoCandidateMatches(t *testing.T) {
	store := newFakeEntityStore()
	matcher := entity.NewMatcher(nil, nil, nil)
	e := New(nil, matcher, store)

	ids, err := e.Resolve(context.Background(), 1, []Mention{{Name: "Acme Corp", Type: model.EntityOrganization, Importance: model.ImportancePrimary}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ids) != 1 || len(store.upserted) != 1 {
		t.Fatalf("expected one new entity upserted, got ids=%v upserted=%d", ids, len(store.upserted))
	}
	if len(store.links) != 1 {
		t.Errorf("expected the article to be linked to the new entity")
	}
}

func TestResolveReusesMatchingExistingEntity(t *testing.T) {
	store := newFakeEntityStore()
	store.byType[model.EntityOrganization] = []*model.Entity{
		{ID: 99, CanonicalName: "Federal Bureau of Investigation", NormalizedForm: "federal bureau of investigation", Type: model.EntityOrganization},
	}
	matcher := entity.NewMatcher(nil, nil, nil)
	e := New(nil, matcher, store)

	ids, err := e.Resolve(context.Background(), 1, []Mention{{Name: "Federal Bureau of Investigation", Type: model.EntityOrganization, Importance: model.ImportanceSecondary}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ids) != 1 || ids[0] != 99 {
		t.Errorf("expected the mention to resolve to the existing entity 99, got %v", ids)
	}
	if len(store.upserted) != 0 {
		t.Errorf("expected no new entity to be created, got %d", len(store.upserted))
	}
}
