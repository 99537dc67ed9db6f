package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/woworkers/woworkers-api/internal/models"
	"github.com/woworkers/woworkers-api/internal/realtime"
	"github.com/woworkers/woworkers-api/internal/services/contracts"
	"github.com/woworkers/woworkers-api/internal/services/reputation"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB

	// actingUser is injected into locals for every request
	actingUser uuid.UUID
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Job{},
		&models.Proposal{},
		&models.Contract{},
		&models.Review{},
	))

	env := &testEnv{db: db}

	hub := realtime.NewHub()
	go hub.Run()

	repSvc := reputation.NewService(db)
	svc := contracts.NewService(db, repSvc)

	jobH := NewJobHandler(db, svc)
	proposalH := NewProposalHandler(db, hub, svc)
	contractH := NewContractHandler(db, hub, nil, svc)
	reviewH := NewReviewHandler(db, repSvc)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userId", env.actingUser.String())
		return c.Next()
	})

	app.Get("/jobs", jobH.ListPublic)
	app.Get("/jobs/:id", jobH.GetJob)
	app.Post("/jobs", jobH.CreateJob)
	app.Post("/jobs/:id/proposals", proposalH.SubmitProposal)
	app.Post("/jobs/:id/proposals/:proposalId/accept", proposalH.Accept)
	app.Post("/contracts/:id/complete", contractH.Complete)
	app.Get("/freelancers/:id/reviews/summary", reviewH.Summary)

	env.app = app
	return env
}

func (e *testEnv) request(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (e *testEnv) seedUser(t *testing.T, role models.Role) models.User {
	t.Helper()
	u := models.User{
		Name:     "user " + uuid.NewString()[:8],
		Email:    uuid.NewString() + "@example.com",
		Password: "x",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, e.db.Create(&u).Error)
	require.NoError(t, e.db.Create(&models.Profile{UserID: u.ID}).Error)
	return u
}

func (e *testEnv) seedJob(t *testing.T, clientID uuid.UUID) models.Job {
	t.Helper()
	j := models.Job{
		ClientID:    clientID,
		Title:       "Build a marketing site",
		Description: strings.Repeat("A five page marketing site with a blog. ", 2),
		Category:    "web",
		BudgetMin:   200,
		BudgetMax:   800,
		BudgetType:  models.BudgetFixed,
		Status:      models.JobOpen,
	}
	require.NoError(t, e.db.Create(&j).Error)
	return j
}

func TestCreateJobValidation(t *testing.T) {
	env := setupEnv(t)
	client := env.seedUser(t, models.RoleClient)
	env.actingUser = client.ID

	_, body := env.request(t, "POST", "/jobs", fiber.Map{
		"title":       "short",
		"description": "too short",
		"budget_min":  0,
		"budget_max":  0,
	})
	assert.Equal(t, false, body["success"])
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "title")
	assert.Contains(t, errs, "description")
	assert.Contains(t, errs, "budget")
	assert.Contains(t, errs, "category")
}

func TestSubmitProposalOverHTTP(t *testing.T) {
	env := setupEnv(t)
	client := env.seedUser(t, models.RoleClient)
	freelancer := env.seedUser(t, models.RoleFreelancer)
	job := env.seedJob(t, client.ID)

	env.actingUser = freelancer.ID

	cover := strings.Repeat("I can build this for you quickly. ", 3)
	resp, body := env.request(t, "POST", "/jobs/"+job.ID.String()+"/proposals", fiber.Map{
		"bid_amount":   400,
		"cover_letter": cover,
		"timeline":     "10 days",
	})
	require.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	// duplicate is refused
	resp, _ = env.request(t, "POST", "/jobs/"+job.ID.String()+"/proposals", fiber.Map{
		"bid_amount":   350,
		"cover_letter": cover,
		"timeline":     "8 days",
	})
	assert.Equal(t, 422, resp.StatusCode)

	// validation failures never create rows
	other := env.seedUser(t, models.RoleFreelancer)
	env.actingUser = other.ID
	_, body = env.request(t, "POST", "/jobs/"+job.ID.String()+"/proposals", fiber.Map{
		"bid_amount":   -1,
		"cover_letter": "too short",
	})
	assert.Equal(t, false, body["success"])

	var count int64
	env.db.Model(&models.Proposal{}).Where("job_id = ?", job.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAcceptAndCompleteOverHTTP(t *testing.T) {
	env := setupEnv(t)
	client := env.seedUser(t, models.RoleClient)
	freelancer := env.seedUser(t, models.RoleFreelancer)
	job := env.seedJob(t, client.ID)

	prop := models.Proposal{
		JobID:        job.ID,
		FreelancerID: freelancer.ID,
		BidAmount:    500,
		CoverLetter:  strings.Repeat("Happy to take this on. ", 3),
		Status:       models.ProposalPending,
	}
	require.NoError(t, env.db.Create(&prop).Error)

	env.actingUser = client.ID

	acceptPath := fmt.Sprintf("/jobs/%s/proposals/%s/accept", job.ID, prop.ID)
	resp, body := env.request(t, "POST", acceptPath, nil)
	require.Equal(t, 201, resp.StatusCode)
	data := body["data"].(map[string]any)
	contractID := data["contract_id"].(string)
	require.NotEmpty(t, contractID)

	// second accept hits the not-open precondition
	resp, _ = env.request(t, "POST", acceptPath, nil)
	assert.Equal(t, 422, resp.StatusCode)

	// unknown proposal maps to 404
	resp, _ = env.request(t, "POST",
		fmt.Sprintf("/jobs/%s/proposals/%s/accept", job.ID, uuid.New()), nil)
	assert.Equal(t, 404, resp.StatusCode)

	// invalid rating maps to 400
	resp, _ = env.request(t, "POST", "/contracts/"+contractID+"/complete", fiber.Map{
		"rating":  9,
		"comment": "n/a",
	})
	assert.Equal(t, 400, resp.StatusCode)

	resp, _ = env.request(t, "POST", "/contracts/"+contractID+"/complete", fiber.Map{
		"rating":  5,
		"comment": "Excellent work.",
	})
	require.Equal(t, 200, resp.StatusCode)

	// completing twice is a 422, the review stays unique
	resp, _ = env.request(t, "POST", "/contracts/"+contractID+"/complete", fiber.Map{
		"rating":  5,
		"comment": "Excellent work.",
	})
	assert.Equal(t, 422, resp.StatusCode)

	resp, body = env.request(t, "GET", "/freelancers/"+freelancer.ID.String()+"/reviews/summary", nil)
	require.Equal(t, 200, resp.StatusCode)
	summary := body["data"].(map[string]any)
	assert.Equal(t, 5.0, summary["average_rating"])
	assert.Equal(t, 1.0, summary["review_count"])
}

func TestPublicJobListing(t *testing.T) {
	env := setupEnv(t)
	client := env.seedUser(t, models.RoleClient)
	env.seedJob(t, client.ID)

	closed := env.seedJob(t, client.ID)
	require.NoError(t, env.db.Model(&models.Job{}).
		Where("id = ?", closed.ID).
		Update("status", models.JobCancelled).Error)

	resp, body := env.request(t, "GET", "/jobs", nil)
	require.Equal(t, 200, resp.StatusCode)

	jobs := body["data"].([]any)
	assert.Len(t, jobs, 1)

	meta := body["meta"].(map[string]any)
	assert.Equal(t, 1.0, meta["total"])
}
