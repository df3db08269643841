package order

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/extraweb/internal/domain/apperr"
)

// InstallmentInput is an installment proposed by the buyer.
type InstallmentInput struct {
	Number  int
	Amount  decimal.Decimal
	DueDate time.Time
}

// buildPlan returns the installment schedule for total. A supplied plan is
// checked, otherwise count equal installments are generated with the
// remainder on the last one. The first installment is due at now.
func buildPlan(total decimal.Decimal, count, intervalDays int, supplied []InstallmentInput, now time.Time) ([]Installment, error) {
	if count == 0 {
		count = len(supplied)
	}
	if count < 1 || count > MaxInstallments {
		return nil, apperr.Validation("installmentCount", fmt.Sprintf("Installment count must be between 1 and %d", MaxInstallments))
	}
	if intervalDays <= 0 {
		intervalDays = DefaultInstallmentIntervalDays
	}
	due := func(i int) time.Time {
		return now.AddDate(0, 0, i*intervalDays)
	}

	if len(supplied) == 0 {
		return generatePlan(total, count, due), nil
	}

	if len(supplied) != count {
		return nil, apperr.Validation("installments", "Number of installments must match installment count")
	}
	in := make([]InstallmentInput, len(supplied))
	copy(in, supplied)
	sort.Slice(in, func(i, j int) bool { return in[i].Number < in[j].Number })

	plan := make([]Installment, count)
	sum := decimal.Zero
	for i, s := range in {
		if s.Number != i+1 {
			return nil, apperr.Validation("installments", "Installments must be numbered from 1 without gaps")
		}
		if !s.Amount.IsPositive() {
			return nil, apperr.Validation(fmt.Sprintf("installments.%d.amount", i), "Installment amount must be positive")
		}
		d := s.DueDate
		if d.IsZero() {
			d = due(i)
		}
		plan[i] = Installment{
			Number:  s.Number,
			Amount:  s.Amount.Round(2),
			DueDate: d,
			Status:  InstallmentPending,
		}
		sum = sum.Add(plan[i].Amount)
	}
	if !sum.Equal(total) {
		return nil, apperr.Validation("installments", "Installment amounts must add up to the order total")
	}
	return plan, nil
}

func generatePlan(total decimal.Decimal, count int, due func(int) time.Time) []Installment {
	share := total.Div(decimal.NewFromInt(int64(count))).RoundDown(2)
	plan := make([]Installment, count)
	for i := range plan {
		plan[i] = Installment{
			Number:  i + 1,
			Amount:  share,
			DueDate: due(i),
			Status:  InstallmentPending,
		}
	}
	last := total.Sub(share.Mul(decimal.NewFromInt(int64(count - 1))))
	plan[count-1].Amount = last
	return plan
}
