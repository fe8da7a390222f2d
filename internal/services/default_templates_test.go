package services

import (
	"context"
	"testing"

	"billremind/internal/core"
	"billremind/internal/storage/memory"
)

func TestEnsureTemplates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	custom := core.MessageTemplate{Name: TemplateStandard, Body: "Oi ${nome}", Active: true}
	if err := store.UpsertTemplate(ctx, custom); err != nil {
		t.Fatal(err)
	}

	created, err := EnsureTemplates(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Errorf("created %d templates, want 1", created)
	}

	std, _ := store.LoadActiveTemplate(ctx, TemplateStandard)
	if std == nil || std.Body != custom.Body {
		t.Errorf("existing template was overwritten: %+v", std)
	}
	if del, _ := store.LoadActiveTemplate(ctx, TemplateDelinquent); del == nil {
		t.Error("delinquent template not seeded")
	}

	if again, err := EnsureTemplates(ctx, store); err != nil || again != 0 {
		t.Errorf("second run created %d (err=%v), want 0", again, err)
	}
}

func TestDefaultTemplatesUseKnownVariables(t *testing.T) {
	for _, tpl := range DefaultTemplates() {
		if unknown := ValidateTemplate(tpl.Body); len(unknown) != 0 {
			t.Errorf("%s uses unknown variables %v", tpl.Name, unknown)
		}
	}
}
