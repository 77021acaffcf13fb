package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"academyhub/database/dbtest"
	"academyhub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHub struct {
	mu   sync.Mutex
	sent map[string]int
}

func (f *fakeHub) BroadcastToUser(userID string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[string]int{}
	}
	f.sent[userID]++
}

type fakeLine struct {
	to   []string
	text []string
	err  error
}

func (f *fakeLine) PushText(to, text string) error {
	f.to = append(f.to, to)
	f.text = append(f.text, text)
	return f.err
}

func TestNormalizeChannels(t *testing.T) {
	assert.Equal(t, []string{ChannelNormal}, NormalizeChannels(nil))
	assert.Equal(t, []string{ChannelNormal}, NormalizeChannels([]string{"sms"}))
	assert.Equal(t, []string{ChannelLine, ChannelPopup}, NormalizeChannels([]string{"line", "popup", "line", "email"}))
}

func TestEnqueueOrCreateDirect(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	academy := models.Academy{Name: "Korat", Code: "KORAT"}
	require.NoError(t, db.Create(&academy).Error)
	linked := models.User{AcademyID: &academy.ID, Email: "a@korat.test", Password: "x", Role: models.RoleParent, Status: "active", LineUserID: "U-line"}
	plain := models.User{AcademyID: &academy.ID, Email: "b@korat.test", Password: "x", Role: models.RoleAdmin, Status: "active"}
	require.NoError(t, db.Omit("Academy").Create(&linked).Error)
	require.NoError(t, db.Omit("Academy").Create(&plain).Error)

	hub, line := &fakeHub{}, &fakeLine{}
	svc := NewService()
	svc.SetWebSocketHub(hub)
	svc.SetLinePusher(line)

	n := New("Payment received", "Ploy paid 1,500 THB", "success", map[string]string{"payment_id": "p1"}, ChannelLine)
	require.NoError(t, svc.EnqueueOrCreate(ctx, []string{linked.ID, plain.ID}, n))

	var stored []models.Notification
	require.NoError(t, db.Order("user_id").Find(&stored).Error)
	require.Len(t, stored, 2)
	var channels []string
	require.NoError(t, json.Unmarshal(stored[0].Channels, &channels))
	assert.Equal(t, []string{ChannelLine}, channels)
	assert.JSONEq(t, `{"payment_id":"p1"}`, string(stored[0].Data))

	assert.Equal(t, 1, hub.sent[linked.ID])
	assert.Equal(t, 1, hub.sent[plain.ID])
	assert.Equal(t, []string{"U-line"}, line.to, "only users with a LINE id are pushed")
	assert.Equal(t, "Payment received\nPloy paid 1,500 THB", line.text[0])

	assert.Error(t, svc.EnqueueOrCreate(ctx, nil, n))
}

func TestLineFailuresDoNotFailCreate(t *testing.T) {
	db := dbtest.New(t)
	u := models.User{Email: "c@korat.test", Password: "x", Role: models.RoleTeacher, Status: "active", LineUserID: "U-c"}
	require.NoError(t, db.Omit("Academy").Create(&u).Error)

	svc := NewService()
	svc.SetLinePusher(&fakeLine{err: errors.New("quota exceeded")})
	require.NoError(t, svc.EnqueueOrCreate(context.Background(), []string{u.ID}, New("Hi", "", "info", nil, ChannelLine)))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPushLineDirect(t *testing.T) {
	svc := &Service{}
	assert.Error(t, svc.PushLineDirect("U1", "hi"))

	line := &fakeLine{}
	svc.SetLinePusher(line)
	require.NoError(t, svc.PushLineDirect("U1", "hi"))
	assert.Equal(t, []string{"U1"}, line.to)
}

func TestUsersByRole(t *testing.T) {
	db := dbtest.New(t)
	academy := models.Academy{Name: "Korat", Code: "KORAT"}
	require.NoError(t, db.Create(&academy).Error)
	for _, u := range []models.User{
		{Email: "o@k.test", Role: models.RoleOwner, Status: "active"},
		{Email: "a@k.test", Role: models.RoleAdmin, Status: "active"},
		{Email: "t@k.test", Role: models.RoleTeacher, Status: "active"},
		{Email: "x@k.test", Role: models.RoleAdmin, Status: "inactive"},
	} {
		u.AcademyID, u.Password = &academy.ID, "x"
		require.NoError(t, db.Omit("Academy").Create(&u).Error)
	}

	ids, err := UsersByRole(context.Background(), db, academy.ID, models.RoleOwner, models.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}
