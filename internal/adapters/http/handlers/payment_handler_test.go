package handlers

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/config"
	"edhub/internal/core/services"
)

func newWebhookTestApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	enrollmentSvc := services.NewEnrollmentService(
		repositories.NewEnrollmentRepository(db),
		repositories.NewUserRepository(db),
		repositories.NewCourseRepository(db),
		repositories.NewPackageRepository(db),
	)
	gateway := services.NewFawaterakClient(config.FawaterakConfig{
		BaseURL:       "http://127.0.0.1:1",
		APIKey:        "test_api_key",
		WebhookSecret: "test_webhook_secret",
		TimeoutSecs:   1,
	})
	paymentSvc := services.NewPaymentService(
		repositories.NewPaymentRepository(db),
		repositories.NewUserRepository(db),
		repositories.NewCourseRepository(db),
		repositories.NewPackageRepository(db),
		enrollmentSvc,
		gateway,
		services.NewNotificationService(config.EmailConfig{}),
		config.FrontendConfig{},
	)

	app := fiber.New()
	app.Post("/api/v1/payments/webhook", NewPaymentHandler(paymentSvc).Webhook)
	return app
}

func TestWebhook_BadSignatureGetsGenericResponse(t *testing.T) {
	app := newWebhookTestApp(t)

	req := httptest.NewRequest("POST", "/api/v1/payments/webhook",
		strings.NewReader(`{"merchantRefNum":"EH_c1_2_3","payment_status":"paid"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-fawaterak-signature", "deadbeef")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Invalid request")
	// A forger must not learn that it was the signature check that failed.
	assert.NotContains(t, strings.ToLower(string(body)), "signature")
}
