package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasad-erp/hasad/pkg/model"
)

func dueIn(days int) *time.Time {
	t := today.AddDate(0, 0, days)
	return &t
}

func TestDebtPayments(t *testing.T) {
	svc, _ := newService(t, today)
	ctx := context.Background()

	d, err := svc.CreateDebt(ctx, clerk, DebtInput{
		PartyName: "مزرعة الواحة",
		PartyType: model.PartyCustomer,
		Direction: model.DebtReceivable,
		Principal: 50000,
		DueDate:   dueIn(30),
	})
	require.NoError(t, err)
	assert.Equal(t, model.DebtOpen, d.Status)
	assert.Equal(t, "SAR", d.Currency)

	_, _, err = svc.RecordDebtPayment(ctx, clerk, d.ID, PaymentInput{Amount: 0, Method: model.MethodCash})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = svc.RecordDebtPayment(ctx, clerk, d.ID, PaymentInput{Amount: 60000, Method: model.MethodCash})
	assert.ErrorIs(t, err, ErrOverpayment)

	d, p, err := svc.RecordDebtPayment(ctx, clerk, d.ID, PaymentInput{Amount: 20000, Method: model.MethodCash, Reference: "R-1"})
	require.NoError(t, err)
	assert.Equal(t, model.DebtPartiallyPaid, d.Status)
	assert.Equal(t, int64(30000), d.Outstanding())
	assert.Equal(t, "clerk", p.RecordedBy)

	d, _, err = svc.RecordDebtPayment(ctx, clerk, d.ID, PaymentInput{Amount: 30000, Method: model.MethodBankTransfer})
	require.NoError(t, err)
	assert.Equal(t, model.DebtSettled, d.Status)
	assert.Zero(t, d.Outstanding())

	_, _, err = svc.RecordDebtPayment(ctx, clerk, d.ID, PaymentInput{Amount: 1, Method: model.MethodCash})
	assert.ErrorIs(t, err, ErrDebtClosed)

	got, payments, err := svc.GetDebt(ctx, reader, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), got.Paid)
	assert.Len(t, payments, 2)
}

func TestCreateDebtValidation(t *testing.T) {
	svc, _ := newService(t, today)
	ctx := context.Background()

	valid := DebtInput{PartyName: "Seed Co", PartyType: model.PartySupplier, Direction: model.DebtPayable, Principal: 100}
	bad := []func(in *DebtInput){
		func(in *DebtInput) { in.PartyName = "" },
		func(in *DebtInput) { in.PartyType = "partner" },
		func(in *DebtInput) { in.Direction = "sideways" },
		func(in *DebtInput) { in.Principal = 0 },
		func(in *DebtInput) { in.Currency = "riyal" },
	}
	for i, mutate := range bad {
		in := valid
		mutate(&in)
		_, err := svc.CreateDebt(ctx, clerk, in)
		assert.ErrorIs(t, err, ErrInvalidInput, "case %d", i)
	}

	_, err := svc.CreateDebt(ctx, reader, valid)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestWriteOffDebt(t *testing.T) {
	svc, _ := newService(t, today)
	ctx := context.Background()

	d, err := svc.CreateDebt(ctx, clerk, DebtInput{PartyName: "Closed shop", PartyType: model.PartyCustomer, Direction: model.DebtReceivable, Principal: 700})
	require.NoError(t, err)

	_, err = svc.WriteOffDebt(ctx, clerk, d.ID, "bankrupt")
	assert.ErrorIs(t, err, ErrForbidden)

	d, err = svc.WriteOffDebt(ctx, manager, d.ID, "bankrupt")
	require.NoError(t, err)
	assert.Equal(t, model.DebtWrittenOff, d.Status)
	assert.Contains(t, d.Notes, "bankrupt")

	_, err = svc.WriteOffDebt(ctx, manager, d.ID, "again")
	assert.ErrorIs(t, err, ErrDebtClosed)

	_, _, err = svc.RecordDebtPayment(ctx, clerk, d.ID, PaymentInput{Amount: 1, Method: model.MethodCash})
	assert.ErrorIs(t, err, ErrDebtClosed)
}

func TestOverdueAndSummary(t *testing.T) {
	svc, _ := newService(t, today)
	ctx := context.Background()

	mk := func(name string, dir model.DebtDirection, amount int64, currency string, due *time.Time) *model.DebtRecord {
		pt := model.PartyCustomer
		if dir == model.DebtPayable {
			pt = model.PartySupplier
		}
		d, err := svc.CreateDebt(ctx, clerk, DebtInput{PartyName: name, PartyType: pt, Direction: dir, Principal: amount, Currency: currency, DueDate: due})
		require.NoError(t, err)
		return d
	}

	late := mk("Late customer", model.DebtReceivable, 1000, "", dueIn(-10))
	later := mk("Very late customer", model.DebtReceivable, 500, "", dueIn(-40))
	mk("On time", model.DebtReceivable, 200, "", dueIn(10))
	mk("Undated", model.DebtReceivable, 300, "", nil)
	settled := mk("Paid up", model.DebtReceivable, 50, "", dueIn(-5))
	mk("Seed supplier", model.DebtPayable, 800, "", dueIn(-1))
	mk("Pump supplier", model.DebtPayable, 9000, "USD", nil)

	_, _, err := svc.RecordDebtPayment(ctx, clerk, settled.ID, PaymentInput{Amount: 50, Method: model.MethodCash})
	require.NoError(t, err)
	_, _, err = svc.RecordDebtPayment(ctx, clerk, late.ID, PaymentInput{Amount: 400, Method: model.MethodCash})
	require.NoError(t, err)

	overdue, err := svc.OverdueDebts(ctx, reader, today)
	require.NoError(t, err)
	require.Len(t, overdue, 3)
	assert.Equal(t, later.ID, overdue[0].ID)
	assert.Equal(t, late.ID, overdue[1].ID)

	summary, err := svc.DebtSummary(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, []model.DebtBalance{
		{Direction: model.DebtPayable, Currency: "SAR", Outstanding: 800, Count: 1},
		{Direction: model.DebtPayable, Currency: "USD", Outstanding: 9000, Count: 1},
		{Direction: model.DebtReceivable, Currency: "SAR", Outstanding: 600 + 500 + 200 + 300, Count: 4},
	}, summary)

	open, err := svc.ListDebts(ctx, reader, DebtFilter{Direction: model.DebtReceivable, OpenOnly: true})
	require.NoError(t, err)
	assert.Len(t, open, 4)

	byParty, err := svc.ListDebts(ctx, reader, DebtFilter{Party: "supplier"})
	require.NoError(t, err)
	assert.Len(t, byParty, 2)
}
