package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

func TestUpdatePaymentInfo_Validation(t *testing.T) {
	h := newHarness(t)
	teacher := h.users.addTeacher("Omar", 100, "Math")

	for _, in := range []model.PaymentInfo{
		{Method: "cash"},
		{Method: PayoutBank, AccountName: "Omar", AccountNumber: "123"},
		{Method: PayoutWallet, PhoneNumber: "010"},
	} {
		_, err := h.teachers.UpdatePaymentInfo(context.Background(), teacher, in)
		requireKind(t, err, KindValidation)
	}
	assert.Empty(t, h.gateway.recipients)
}

func TestUpdatePaymentInfo_Bank(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.users.addTeacher("Omar", 100, "Math")

	p, err := h.teachers.UpdatePaymentInfo(ctx, teacher, model.PaymentInfo{
		Method: " BANK ", AccountName: "Omar Ali", AccountNumber: "EG12", BankName: "CIB",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PayoutRegistered, p.PayoutStatus)
	assert.Equal(t, "rcp-1", *p.PayoutRecipientID)

	require.Len(t, h.gateway.recipients, 1)
	r := h.gateway.recipients[0]
	assert.Equal(t, "Omar Ali", r.Name)
	assert.Equal(t, "bank", r.Type)
	assert.Equal(t, "EG12", r.AccountNumber)
	assert.Equal(t, "CIB", r.BankName)

	// a registered teacher updating details is not registered twice
	_, err = h.teachers.UpdatePaymentInfo(ctx, teacher, model.PaymentInfo{
		Method: PayoutBank, AccountName: "Omar Ali", AccountNumber: "EG99", BankName: "CIB",
	})
	require.NoError(t, err)
	assert.Len(t, h.gateway.recipients, 1)

	got, err := h.teachers.GetPaymentInfo(ctx, teacher)
	require.NoError(t, err)
	assert.Equal(t, "EG99", *got.AccountNumber)
}

func TestUpdatePaymentInfo_FailureThenRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.users.addTeacher("Omar", 100, "Math")
	info := model.PaymentInfo{Method: PayoutWallet, WalletProvider: "vodafone", PhoneNumber: "01000000000"}

	h.gateway.registerErr = errors.New("recipient rejected")
	_, err := h.teachers.UpdatePaymentInfo(ctx, teacher, info)
	requireKind(t, err, KindUpstream)

	p, err := h.teachers.GetPaymentInfo(ctx, teacher)
	require.NoError(t, err, "details are kept even when registration fails")
	assert.Equal(t, model.PayoutFailed, p.PayoutStatus)
	require.NotNil(t, p.PayoutError)
	assert.False(t, p.HasPayoutRecipient())

	h.gateway.registerErr = nil
	p, err = h.teachers.UpdatePaymentInfo(ctx, teacher, info)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutRegistered, p.PayoutStatus)
	assert.Nil(t, p.PayoutError)
	assert.Equal(t, "vodafone", h.gateway.recipients[0].BankName)
	assert.Equal(t, "Omar", h.gateway.recipients[0].Name)
}

func TestGetPaymentInfo_NotSet(t *testing.T) {
	h := newHarness(t)
	teacher := h.users.addTeacher("Omar", 100, "Math")
	_, err := h.teachers.GetPaymentInfo(context.Background(), teacher)
	requireKind(t, err, KindNotFound)

	student := h.users.addUser(model.RoleStudent, "Sara")
	_, err = h.teachers.GetPaymentInfo(context.Background(), student)
	requireKind(t, err, KindNotFound)
}
