package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openpredict/market-engine/internal/model"
	"github.com/openpredict/market-engine/internal/pricing"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func validDefinition() Definition {
	return Definition{
		Title:        "2024 Presidential Election",
		Description:  "Who wins the election?",
		Category:     "politics",
		EndTime:      time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
		PricingModel: model.ModelImpact,
		Outcomes: []OutcomeDef{
			{ID: "trump", Label: "Donald Trump", Price: d(0.45)},
			{ID: "biden", Label: "Joe Biden", Price: d(0.42)},
			{ID: "other", Label: "Other", Price: d(0.13)},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	def := validDefinition()
	if err := def.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
		want   error
	}{
		{"missing title", func(d *Definition) { d.Title = "" }, ErrInvalidDefinition},
		{"missing category", func(d *Definition) { d.Category = "" }, ErrInvalidDefinition},
		{"unknown model", func(d *Definition) { d.PricingModel = "orderbook" }, ErrInvalidDefinition},
		{"single outcome", func(d *Definition) { d.Outcomes = d.Outcomes[:1] }, ErrInvalidDefinition},
		{"missing outcome id", func(d *Definition) { d.Outcomes[0].ID = "" }, ErrInvalidDefinition},
		{"duplicate outcome id", func(d *Definition) { d.Outcomes[1].ID = "trump" }, ErrInvalidDefinition},
		{"zero price", func(m *Definition) { m.Outcomes[0].Price = decimal.Zero }, ErrBadPriceVector},
		{"price at one", func(m *Definition) { m.Outcomes[0].Price = decimal.NewFromInt(1) }, ErrBadPriceVector},
		{"prices do not sum to one", func(m *Definition) { m.Outcomes[0].Price = d(0.5) }, ErrBadPriceVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)
			if err := def.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewMarket_Impact(t *testing.T) {
	m, err := NewMarket(validDefinition())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.ID == "" {
		t.Error("market should get a generated id")
	}
	if m.Status != model.StatusTrading {
		t.Errorf("new market should be trading, got %s", m.Status)
	}
	if len(m.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(m.Outcomes))
	}
	if !m.Outcomes[0].Price.Equal(d(0.45)) {
		t.Errorf("initial price should be preserved, got %s", m.Outcomes[0].Price)
	}
}

func TestNewMarket_LMSRSeedsQuantities(t *testing.T) {
	def := validDefinition()
	def.PricingModel = model.ModelLMSR
	def.B = d(150)

	m, err := NewMarket(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.B.Equal(d(150)) {
		t.Errorf("expected b=150, got %s", m.B)
	}

	// The seeded quantities must reproduce the requested prices.
	strat, err := pricing.NewLMSRStrategy(m.B)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	quantities := make([]decimal.Decimal, len(m.Outcomes))
	for i, o := range m.Outcomes {
		quantities[i] = o.Quantity
	}
	for i, p := range strat.PriceVector(quantities) {
		if p.Sub(m.Outcomes[i].Price).Abs().GreaterThan(d(1e-6)) {
			t.Errorf("outcome %d: seeded quantity yields %s, want %s",
				i, p, m.Outcomes[i].Price)
		}
	}
}

func TestNewMarket_DefaultB(t *testing.T) {
	def := validDefinition()
	def.PricingModel = model.ModelLMSR

	m, err := NewMarket(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.B.Equal(DefaultB) {
		t.Errorf("expected default b %s, got %s", DefaultB, m.B)
	}
}

func TestNewMarket_AccumulatesVolume(t *testing.T) {
	def := validDefinition()
	def.Outcomes[0].Volume = d(1000)
	def.Outcomes[1].Volume = d(500)

	m, err := NewMarket(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.TotalVolume.Equal(d(1500)) {
		t.Errorf("expected total volume 1500, got %s", m.TotalVolume)
	}
}

func TestNewBinaryMarket(t *testing.T) {
	m, err := NewBinaryMarket("Will it rain tomorrow?", "", "weather",
		time.Now().Add(24*time.Hour), model.ModelImpact, d(65))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(m.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(m.Outcomes))
	}
	if m.Outcomes[0].ID != "yes" || m.Outcomes[1].ID != "no" {
		t.Errorf("expected yes/no pair, got %s/%s", m.Outcomes[0].ID, m.Outcomes[1].ID)
	}
	if !m.Outcomes[0].Price.Equal(d(0.65)) {
		t.Errorf("yes price should be 0.65, got %s", m.Outcomes[0].Price)
	}
	if !m.Outcomes[1].Price.Equal(d(0.35)) {
		t.Errorf("no price should be 0.35, got %s", m.Outcomes[1].Price)
	}
}

func TestNewBinaryMarket_RejectsOutOfRangePercentage(t *testing.T) {
	for _, pct := range []float64{0, 100, -5, 150} {
		_, err := NewBinaryMarket("t", "", "c", time.Now(), model.ModelImpact, d(pct))
		if !errors.Is(err, ErrInvalidDefinition) {
			t.Errorf("expected ErrInvalidDefinition for %v%%, got %v", pct, err)
		}
	}
}

func TestDeriveLiquidity(t *testing.T) {
	tests := []struct {
		name    string
		volumes []float64
		want    float64
	}{
		// spread 900, mean 550: 100 × 900/550 ≈ 163.64
		{"wide spread", []float64{100, 1000}, 163.64},
		// no spread → floor
		{"uniform volumes", []float64{500, 500, 500}, 10},
		{"empty", nil, 10},
		{"all zero", []float64{0, 0}, 10},
	}

	base := d(100)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			volumes := make([]decimal.Decimal, len(tt.volumes))
			for i, v := range tt.volumes {
				volumes[i] = d(v)
			}
			got := DeriveLiquidity(volumes, base)
			if got.Sub(d(tt.want)).Abs().GreaterThan(d(0.01)) {
				t.Errorf("want %v, got %s", tt.want, got)
			}
		})
	}
}
