package analytics

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
)

// Padrões da série de tendência.
const (
	DefaultWindowDays  = 12
	DefaultHorizonDays = 5

	jitterMin = 0.8
	jitterMax = 1.2
)

// JitterFunc devolve o multiplicador aplicado à média da janela em cada dia projetado.
// O resultado é limitado a [0.8, 1.2].
type JitterFunc func() float64

// RandomJitter é a perturbação pseudo-aleatória padrão.
// É uma escolha de produto, não uma previsão estatística.
func RandomJitter() float64 {
	return jitterMin + rand.Float64()*(jitterMax-jitterMin)
}

// NoHorizon desliga os pontos projetados em TrendOptions.HorizonDays.
const NoHorizon = -1

// TrendOptions parametriza BuildTrendSeries. Campos zerados usam os padrões;
// HorizonDays negativo (NoHorizon) devolve só a janela observada.
type TrendOptions struct {
	WindowDays  int
	HorizonDays int
	Jitter      JitterFunc
	Location    *time.Location
}

func (o TrendOptions) withDefaults() TrendOptions {
	if o.WindowDays <= 0 {
		o.WindowDays = DefaultWindowDays
	}
	switch {
	case o.HorizonDays == 0:
		o.HorizonDays = DefaultHorizonDays
	case o.HorizonDays < 0:
		o.HorizonDays = 0
	}
	if o.Jitter == nil {
		o.Jitter = RandomJitter
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// BuildTrendSeries monta a série diária dos últimos WindowDays dias (terminando em now)
// seguida de HorizonDays pontos projetados.
//
// Os dias são comparados por data de calendário no fuso do cliente, não por janelas de 24h.
// Cada ponto projetado vale média(janela) × jitter.
func BuildTrendSeries(txns []domain.Transaction, now time.Time, opts TrendOptions) []domain.TrendPoint {
	opts = opts.withDefaults()
	loc := opts.Location

	byDay := make(map[string]float64)
	for _, tx := range txns {
		byDay[tx.Date.In(loc).Format(time.DateOnly)] += tx.Amount.InexactFloat64()
	}

	today := time.Date(now.In(loc).Year(), now.In(loc).Month(), now.In(loc).Day(), 0, 0, 0, 0, loc)
	points := make([]domain.TrendPoint, 0, opts.WindowDays+opts.HorizonDays)

	var windowSum float64
	for i := opts.WindowDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		amount := roundCents(byDay[day.Format(time.DateOnly)])
		windowSum += amount
		points = append(points, domain.TrendPoint{
			Label:  day.Format("Jan 02"),
			Date:   day,
			Amount: amount,
		})
	}

	avg := windowSum / float64(opts.WindowDays)
	for i := 1; i <= opts.HorizonDays; i++ {
		day := today.AddDate(0, 0, i)
		points = append(points, domain.TrendPoint{
			Label:     day.Format("Jan 02"),
			Date:      day,
			Amount:    roundCents(avg * clampJitter(opts.Jitter())),
			Predicted: true,
		})
	}
	return points
}

func clampJitter(j float64) float64 {
	return math.Min(jitterMax, math.Max(jitterMin, j))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
