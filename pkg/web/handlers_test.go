package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/pkg/cmd"
	"github.com/docuflow/docuflow/pkg/engine"
	"github.com/docuflow/docuflow/pkg/mocks"
	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/persistence/memory"
	"github.com/docuflow/docuflow/pkg/services"
	"github.com/docuflow/docuflow/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *services.Catalog) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewPersistence()
	registry := cmd.NewRegistryWithCollaborators(logger, &mocks.MockValidator{}, &mocks.MockScriptRunner{})
	catalog := services.NewCatalog(store, registry)
	eng := engine.NewEngine(logger, store, registry, &mocks.CollectingPublisher{})

	handlers := web.NewAPIHandlers(catalog, eng, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/start", handlers.StartWorkflow)
	w.Get("/:id/bottlenecks", handlers.GetBottlenecks)

	app.Post("/events", handlers.PublishEvent)

	i := app.Group("/instances")
	i.Get("/", handlers.GetInstances)
	i.Get("/:id", handlers.GetInstance)

	app.Get("/analytics", handlers.GetAnalytics)

	return app, catalog
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func createRequestBody() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name:     "Contract review",
		Category: models.CategoryLegal,
		Triggers: []*models.Trigger{
			{Type: models.TriggerDocumentType, Condition: models.TriggerCondition{
				Field:    "category",
				Operator: models.OperatorEquals,
				Value:    "contract",
			}},
		},
		Steps: []*models.StepSpec{
			{
				ID:   "notify",
				Name: "Notify legal",
				Type: models.StepNotification,
				Config: models.StepConfig{
					Notification: &models.NotificationConfig{
						Recipients:      []string{"legal-team"},
						MessageTemplate: "New contract {{ .document.title }}",
					},
				},
			},
		},
	}
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "successful creation",
			requestBody:    createRequestBody(),
			expectedStatus: http.StatusCreated,
		},
		{
			name: "missing name",
			requestBody: func() web.CreateWorkflowRequest {
				r := createRequestBody()
				r.Name = ""

				return r
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "bad category",
			requestBody: func() web.CreateWorkflowRequest {
				r := createRequestBody()
				r.Category = "marketing"

				return r
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "no steps",
			requestBody: func() web.CreateWorkflowRequest {
				r := createRequestBody()
				r.Steps = nil

				return r
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "dangling dependency",
			requestBody: func() web.CreateWorkflowRequest {
				r := createRequestBody()
				r.Steps[0].Dependencies = []string{"missing"}

				return r
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid json",
			requestBody:    "not an object",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := setupTestApp(t)

			resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows", tt.requestBody))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)

				var definition models.WorkflowDefinition
				require.NoError(t, json.Unmarshal(body, &definition))
				assert.NotEmpty(t, definition.ID)
				assert.Equal(t, 1, definition.Version)
				assert.True(t, definition.IsActive)
			}
		})
	}
}

func TestAPIHandlers_GetWorkflow(t *testing.T) {
	app, catalog := setupTestApp(t)

	req := createRequestBody()
	created, err := catalog.Create(t.Context(), &models.WorkflowDefinition{
		Name:     req.Name,
		Category: req.Category,
		Triggers: req.Triggers,
		Steps:    req.Steps,
	})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/unknown", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_UpdateWorkflow(t *testing.T) {
	app, catalog := setupTestApp(t)

	req := createRequestBody()
	created, err := catalog.Create(t.Context(), &models.WorkflowDefinition{
		Name:     req.Name,
		Category: req.Category,
		Triggers: req.Triggers,
		Steps:    req.Steps,
	})
	require.NoError(t, err)

	name := "Contract review v2"
	active := false

	resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/workflows/"+created.ID, web.UpdateWorkflowRequest{
		Name:     &name,
		IsActive: &active,
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var updated models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "Contract review v2", updated.Name)
	assert.Equal(t, 2, updated.Version)
	assert.False(t, updated.IsActive)
	// Untouched fields keep their stored value.
	assert.Equal(t, models.CategoryLegal, updated.Category)
}

func TestAPIHandlers_PublishEvent(t *testing.T) {
	app, catalog := setupTestApp(t)

	req := createRequestBody()
	_, err := catalog.Create(t.Context(), &models.WorkflowDefinition{
		Name:     req.Name,
		Category: req.Category,
		Triggers: req.Triggers,
		Steps:    req.Steps,
	})
	require.NoError(t, err)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/events", models.DocumentEvent{
		DocumentID: "doc-1",
		Category:   "contract",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var result web.TriggerResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 1, result.Matched)
	require.Len(t, result.InstanceIDs, 1)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/instances/"+result.InstanceIDs[0], nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIHandlers_PublishEvent_RequiresDocumentID(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/events", models.DocumentEvent{Category: "contract"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_StartWorkflow_UnknownDefinition(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/unknown/start", models.DocumentEvent{
		DocumentID: "doc-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_DeleteWorkflow_Lifecycle(t *testing.T) {
	app, catalog := setupTestApp(t)

	req := createRequestBody()
	created, err := catalog.Create(t.Context(), &models.WorkflowDefinition{
		Name:     req.Name,
		Category: req.Category,
		Triggers: req.Triggers,
		Steps:    req.Steps,
	})
	require.NoError(t, err)

	// Start an instance so deletion conflicts.
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+created.ID+"/start", models.DocumentEvent{
		DocumentID: "doc-1",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/workflows/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_GetWorkflows_Filtering(t *testing.T) {
	app, catalog := setupTestApp(t)

	req := createRequestBody()
	_, err := catalog.Create(t.Context(), &models.WorkflowDefinition{
		Name:     req.Name,
		Category: req.Category,
		Triggers: req.Triggers,
		Steps:    req.Steps,
	})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/?category=legal", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var result struct {
		TotalCount int `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 1, result.TotalCount)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/?category=financial", nil))
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 0, result.TotalCount)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/?active_only=nope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_GetAnalytics(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/analytics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var snapshot engine.AnalyticsSnapshot
	require.NoError(t, json.Unmarshal(body, &snapshot))
	assert.Equal(t, 0, snapshot.TotalWorkflows)
}
