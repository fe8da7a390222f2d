package services

import (
	"context"
	"fmt"
	"log/slog"

	"billremind/internal/core"
)

// TemplateSeeder is a template store that can also write templates.
type TemplateSeeder interface {
	TemplateStore
	UpsertTemplate(ctx context.Context, t core.MessageTemplate) error
}

// DefaultTemplates returns the stock reminder texts.
func DefaultTemplates() []core.MessageTemplate {
	return []core.MessageTemplate{
		{
			Name:   TemplateStandard,
			Active: true,
			Body: `Olá ${nome},

Lembrete de honorários:
Serviço: ${descricao}
Valor: R$ ${valor}
Vencimento: dia ${vencimento}

Atenciosamente,
${empresa}`,
		},
		{
			Name:   TemplateDelinquent,
			Active: true,
			Body: `Olá ${nome},

URGENTE - Honorários em atraso:
Serviço: ${descricao}
Valor: R$ ${valor}
Vencimento: dia ${vencimento}

Regularize sua situação para evitar bloqueio.
${empresa}`,
		},
	}
}

// EnsureTemplates stores each default template whose name has no active
// template yet. Existing templates are never overwritten.
func EnsureTemplates(ctx context.Context, store TemplateSeeder) (int, error) {
	created := 0
	for _, t := range DefaultTemplates() {
		existing, err := store.LoadActiveTemplate(ctx, t.Name)
		if err != nil {
			return created, fmt.Errorf("check template %s: %w", t.Name, err)
		}
		if existing != nil {
			continue
		}
		if unknown := ValidateTemplate(t.Body); len(unknown) > 0 {
			return created, core.InvariantViolationf("default template %s uses unknown variables %v", t.Name, unknown)
		}
		if err := store.UpsertTemplate(ctx, t); err != nil {
			return created, fmt.Errorf("seed template %s: %w", t.Name, err)
		}
		created++
		slog.InfoContext(ctx, "Default template created", "component", "scheduler", "template", t.Name)
	}
	return created, nil
}
