package services

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"billremind/internal/cache"
	"billremind/internal/core"
)

// Template names chosen by client status.
const (
	TemplateStandard   = "cobranca_padrao"
	TemplateDelinquent = "cobranca_inadimplente"
)

var placeholderRe = regexp.MustCompile(`\$\{(\w+)\}`)

var weekdaysPT = [...]string{
	time.Sunday:    "domingo",
	time.Monday:    "segunda-feira",
	time.Tuesday:   "terça-feira",
	time.Wednesday: "quarta-feira",
	time.Thursday:  "quinta-feira",
	time.Friday:    "sexta-feira",
	time.Saturday:  "sábado",
}

var monthsPT = [...]string{
	"", "janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// knownVariables lists every placeholder Render can fill.
var knownVariables = []string{
	"data_hoje", "dia_semana", "mes_ano", "empresa",
	"nome", "descricao", "valor", "vencimento",
}

// RenderContext carries the per-account values substituted into a template.
type RenderContext struct {
	ClientName  string
	Description string
	Amount      decimal.Decimal
	DueDay      int
}

// TemplateRenderer fills ${name} placeholders in stored message templates.
type TemplateRenderer struct {
	store   TemplateStore
	cache   *cache.LRUCache[core.MessageTemplate]
	company string
	now     func() time.Time
}

// NewTemplateRenderer creates a renderer. cache may be nil to always read
// templates from the store.
func NewTemplateRenderer(store TemplateStore, c *cache.LRUCache[core.MessageTemplate], company string, now func() time.Time) *TemplateRenderer {
	if now == nil {
		now = time.Now
	}
	return &TemplateRenderer{store: store, cache: c, company: company, now: now}
}

// Render loads the named active template and substitutes its variables.
// A missing or inactive template yields an ErrNotFound error.
func (r *TemplateRenderer) Render(ctx context.Context, name string, rc RenderContext) (string, error) {
	tpl, err := r.template(ctx, name)
	if err != nil {
		return "", err
	}
	return r.Expand(tpl.Body, rc), nil
}

// Expand substitutes variables in body. Unknown placeholders are left as is.
func (r *TemplateRenderer) Expand(body string, rc RenderContext) string {
	vars := r.variables(rc)
	return placeholderRe.ReplaceAllStringFunc(body, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// ValidateTemplate returns the placeholders in body that Render cannot fill.
func ValidateTemplate(body string) []string {
	var unknown []string
	for _, m := range placeholderRe.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if !slices.Contains(knownVariables, name) && !slices.Contains(unknown, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

func (r *TemplateRenderer) template(ctx context.Context, name string) (core.MessageTemplate, error) {
	load := func() (core.MessageTemplate, error) {
		tpl, err := r.store.LoadActiveTemplate(ctx, name)
		if err != nil {
			return core.MessageTemplate{}, fmt.Errorf("load template %q: %w", name, err)
		}
		if tpl == nil {
			return core.MessageTemplate{}, core.NotFoundf("template %q", name)
		}
		return *tpl, nil
	}
	if r.cache == nil {
		return load()
	}
	return r.cache.GetOrLoad(name, load)
}

func (r *TemplateRenderer) variables(rc RenderContext) map[string]string {
	now := r.now()
	return map[string]string{
		"data_hoje":  now.Format("02/01/2006"),
		"dia_semana": weekdaysPT[now.Weekday()],
		"mes_ano":    monthsPT[now.Month()] + "/" + strconv.Itoa(now.Year()),
		"empresa":    r.company,
		"nome":       rc.ClientName,
		"descricao":  rc.Description,
		"valor":      core.FormatAmount(rc.Amount),
		"vencimento": strconv.Itoa(rc.DueDay),
	}
}
