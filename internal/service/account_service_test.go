package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

func TestRegisterDevice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.users.addUser(model.RoleStudent, "Sara")

	require.NoError(t, h.accounts.RegisterDevice(ctx, u, " fcm-token ", "AR"))
	me, err := h.accounts.Me(ctx, u)
	require.NoError(t, err)
	require.NotNil(t, me.PushToken)
	assert.Equal(t, "fcm-token", *me.PushToken)
	assert.Equal(t, "ar", me.Language)

	require.NoError(t, h.accounts.RegisterDevice(ctx, u, "", ""))
	me, err = h.accounts.Me(ctx, u)
	require.NoError(t, err)
	assert.Nil(t, me.PushToken)
	assert.Equal(t, "en", me.Language)

	err = h.accounts.RegisterDevice(ctx, u, "tok", "fr")
	requireKind(t, err, KindValidation)

	_, err = h.accounts.Me(ctx, 999)
	requireKind(t, err, KindNotFound)
}

func TestNotificationsInbox(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.users.addUser(model.RoleStudent, "Sara")
	teacher := h.users.addTeacher("Omar", 100, "Math")
	h.approvedLesson(t, student, teacher)

	inbox, err := h.accounts.Notifications(ctx, teacher, 1, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, model.NotifyLessonApproved, inbox[0].Type, "newest first")
	assert.Equal(t, model.NotifyLessonRequest, inbox[1].Type)

	inbox, err = h.accounts.Notifications(ctx, student, 1, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.NotifyTeacherInterest, inbox[0].Type)
}
