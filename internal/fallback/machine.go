package fallback

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LJTian/DailyBrief/internal/collector"
)

type phase int

const (
	phaseTrying phase = iota
	phaseResolved
	phaseExhausted
)

func (p phase) String() string {
	switch p {
	case phaseResolved:
		return "resolved"
	case phaseExhausted:
		return "exhausted"
	default:
		return "trying"
	}
}

// machine 对应 Trying(i) → Resolved(value, i) | Trying(i+1) | Exhausted
type machine struct {
	candidates []Candidate
	phase      phase
	index      int
	attempts   int
	value      decimal.Decimal
	used       string
}

func newMachine(candidates []Candidate) *machine {
	m := &machine{candidates: candidates}
	if len(candidates) == 0 {
		m.phase = phaseExhausted
	}
	return m
}

func (m *machine) done() bool {
	return m.phase != phaseTrying
}

// step 尝试当前候选并推进一次状态；终态下调用无副作用
func (m *machine) step(ctx context.Context, timeout time.Duration, onFailure func(string, *collector.SourceFailure)) {
	if m.done() {
		return
	}

	c := m.candidates[m.index]
	m.attempts++
	value, failure := collector.QuoteSafe(ctx, c, timeout)
	if failure == nil {
		m.phase = phaseResolved
		m.value = value
		m.used = c.Name()
		return
	}

	if onFailure != nil {
		onFailure(c.Name(), failure)
	}
	if m.index+1 < len(m.candidates) {
		m.index++
		return
	}
	m.phase = phaseExhausted
}

func (m *machine) result() Result {
	if m.phase != phaseResolved {
		return Unavailable(m.attempts)
	}
	return Result{Value: m.value, SourceUsed: m.used, Attempts: m.attempts}
}
