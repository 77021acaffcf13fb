package handlers_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"academyhub/database/dbtest"
	"academyhub/handlers"
	"academyhub/models"
	"academyhub/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "line-secret"

type recordingReplier struct {
	mu      sync.Mutex
	replies map[string]string
}

func (r *recordingReplier) ReplyText(token, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replies == nil {
		r.replies = map[string]string{}
	}
	r.replies[token] = text
	return nil
}

func post(t *testing.T, app *fiber.App, body []byte, signature string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/line/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Line-Signature", signature)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func textEvent(replyToken, userID, text string) []byte {
	return []byte(fmt.Sprintf(`{"destination":"Ubot","events":[{"type":"message","mode":"active","timestamp":1700000000000,`+
		`"replyToken":%q,"source":{"type":"user","userId":%q},"message":{"type":"text","id":"1","text":%q}}]}`,
		replyToken, userID, text))
}

func TestSignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	sig := handlers.ComputeSignature(secret, body)
	assert.True(t, handlers.ValidateSignature(secret, body, sig))
	assert.False(t, handlers.ValidateSignature("other", body, sig))
	assert.False(t, handlers.ValidateSignature(secret, []byte(`{"events":[{}]}`), sig))
}

func TestWebhookLinksParent(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	academy := models.Academy{Name: "Korat", Code: "KORAT"}
	require.NoError(t, db.Create(&academy).Error)
	parent := models.Parent{AcademyID: academy.ID, FirstName: "Malee"}
	require.NoError(t, services.NewParentService(db).Create(ctx, &parent))
	child := models.Student{AcademyID: academy.ID, ParentID: &parent.ID, FirstName: "Ploy", LastName: "S"}
	require.NoError(t, db.Omit("Class", "Parent").Create(&child).Error)

	replier := &recordingReplier{}
	h := handlers.NewLineWebhookHandler(db, secret, replier)
	h.Sync = true
	app := fiber.New()
	app.Post("/line/webhook", h.Handle)

	body := textEvent("tok-1", "U-parent", " "+parent.LinkCode+" ")
	assert.Equal(t, http.StatusBadRequest, post(t, app, body, ""))
	assert.Equal(t, http.StatusUnauthorized, post(t, app, body, "bogus"))
	require.Equal(t, http.StatusOK, post(t, app, body, handlers.ComputeSignature(secret, body)))

	var stored models.Parent
	require.NoError(t, db.Where("id = ?", parent.ID).First(&stored).Error)
	assert.Equal(t, "U-parent", stored.LineUserID)
	assert.Contains(t, replier.replies["tok-1"], "Ploy S")

	unknown := textEvent("tok-2", "U-stranger", "NOPE1234")
	require.Equal(t, http.StatusOK, post(t, app, unknown, handlers.ComputeSignature(secret, unknown)))
	assert.Contains(t, replier.replies["tok-2"], "not recognised")
}

func TestWebhookWithoutSecretIsNoop(t *testing.T) {
	db := dbtest.New(t)
	app := fiber.New()
	app.Post("/line/webhook", handlers.NewLineWebhookHandler(db, "", nil).Handle)
	assert.Equal(t, http.StatusOK, post(t, app, []byte(`{}`), ""))
}
