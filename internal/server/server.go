package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"permitflow/internal/engine"
	"permitflow/internal/engine/auth"
	"permitflow/internal/repo"
	"permitflow/internal/wizard"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"validation failed: startDate"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Permitflow API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Permitflow API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	checker := auth.Checker{Config: cfg.Engine.Config}

	registerDocs(router, basePath)
	registerHealth(group)
	registerDirectory(group, cfg.Engine, checker)
	registerTemplates(group, cfg.Engine, checker)
	registerSessions(group, cfg.Engine, checker)
	registerPermits(group, cfg.Engine, checker)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps domain errors to the API envelope. Field-level validation
// failures keep their field map in details so clients render them on the
// same fields the step validator uses.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve wizard.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"fields": ve.Fields})
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, engine.ErrSessionNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func requirePermission(ctx context.Context, checker auth.Checker, perm string) huma.StatusError {
	principal, ok := principalFromContext(ctx)
	if !ok || principal.ActorID == "" {
		return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	if err := checker.Require(principal.Roles, perm); err != nil {
		return handleError(err)
	}
	return nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Permitflow API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDirectory(api huma.API, e *engine.Engine, checker auth.Checker) {
	huma.Register(api, huma.Operation{
		OperationID: "list-companies",
		Method:      http.MethodGet,
		Path:        "/directory/companies",
		Summary:     "Companies for selection",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CompanyResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.read"); err != nil {
			return nil, err
		}
		items, err := e.Repo.ListCompanies(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CompanyResponse `json:"body"`
		}{Body: mapCompanies(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contractors",
		Method:      http.MethodGet,
		Path:        "/directory/companies/{company_id}/contractors",
		Summary:     "Active contractors for a company",
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
	}) (*struct {
		Body []ContractorResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.read"); err != nil {
			return nil, err
		}
		items, err := e.Contractors(ctx, input.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ContractorResponse `json:"body"`
		}{Body: mapContractors(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-departments",
		Method:      http.MethodGet,
		Path:        "/directory/companies/{company_id}/departments",
		Summary:     "Approval departments for a company",
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
	}) (*struct {
		Body []DepartmentResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.read"); err != nil {
			return nil, err
		}
		items, err := e.Repo.ListDepartments(ctx, input.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DepartmentResponse `json:"body"`
		}{Body: mapDepartments(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-forms",
		Method:      http.MethodGet,
		Path:        "/directory/forms",
		Summary:     "Active auxiliary forms",
	}, func(ctx context.Context, input *struct {
		IsActive bool `query:"isActive" default:"true"`
	}) (*struct {
		Body []FormResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.read"); err != nil {
			return nil, err
		}
		items, err := e.Repo.ListForms(ctx, input.IsActive)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []FormResponse `json:"body"`
		}{Body: mapForms(items)}, nil
	})
}

func registerTemplates(api huma.API, e *engine.Engine, checker auth.Checker) {
	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List templates",
	}, func(ctx context.Context, input *struct {
		Category string `query:"category"`
	}) (*struct {
		Body []TemplateHeaderResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.read"); err != nil {
			return nil, err
		}
		items, err := e.Repo.ListTemplates(ctx, input.Category)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TemplateHeaderResponse `json:"body"`
		}{Body: mapTemplateHeaders(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/templates/{template_id}",
		Summary:     "Get template detail",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
	}) (*struct {
		Body templateBody `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.read"); err != nil {
			return nil, err
		}
		t, err := e.Repo.GetTemplate(ctx, input.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body templateBody `json:"body"`
		}{Body: templateBody(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "upsert-template",
		Method:        http.MethodPut,
		Path:          "/templates/{template_id}",
		Summary:       "Create or replace a template",
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		TemplateID string                `path:"template_id"`
		Body       UpsertTemplateRequest `json:"body"`
	}) (*struct {
		Body templateBody `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "template.write"); err != nil {
			return nil, err
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if input.Body.Category == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "category is required", nil)
		}
		t, err := e.SaveTemplate(ctx, input.TemplateID, engine.TemplateSpec{
			Name:              input.Body.Name,
			Category:          input.Body.Category,
			WorkDescription:   input.Body.WorkDescription,
			DefaultLocation:   input.Body.DefaultLocation,
			IdentifiedRisks:   input.Body.IdentifiedRisks,
			ToolsToUse:        input.Body.ToolsToUse,
			RequiredPPE:       input.Body.RequiredPPE,
			SafetyControls:    input.Body.SafetyControls,
			RequiredApprovals: input.Body.RequiredApprovals,
			RequiredForms:     input.Body.RequiredForms,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body templateBody `json:"body"`
		}{Body: templateBody(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-template",
		Method:      http.MethodDelete,
		Path:        "/templates/{template_id}",
		Summary:     "Delete a template",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, checker, "template.write"); err != nil {
			return nil, err
		}
		if err := e.Repo.DeleteTemplate(ctx, input.TemplateID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerSessions(api huma.API, e *engine.Engine, checker auth.Checker) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-session",
		Method:        http.MethodPost,
		Path:          "/sessions",
		Summary:       "Start an authoring session",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body StartSessionRequest `json:"body"`
	}) (*struct {
		Body SessionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.author"); err != nil {
			return nil, err
		}
		principal, _ := principalFromContext(ctx)
		s, err := e.StartSession(ctx, principal.ActorID, principal.CompanyID, input.Body.PermitID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionResponse `json:"body"`
		}{Body: sessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}",
		Summary:     "Get the authoring session state",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*struct {
		Body SessionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.author"); err != nil {
			return nil, err
		}
		s, err := e.GetSession(input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionResponse `json:"body"`
		}{Body: sessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-draft",
		Method:      http.MethodPatch,
		Path:        "/sessions/{session_id}/draft",
		Summary:     "Update draft fields",
		Errors:      []int{http.StatusNotFound, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		SessionID string             `path:"session_id"`
		Body      UpdateDraftRequest `json:"body"`
	}) (*struct {
		Body SessionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.author"); err != nil {
			return nil, err
		}
		s, err := e.UpdateDraft(ctx, input.SessionID, draftPatch(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionResponse `json:"body"`
		}{Body: sessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "session-next",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/next",
		Summary:     "Advance the wizard if the active step validates",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*struct {
		Body StepResultResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.author"); err != nil {
			return nil, err
		}
		s, errs, err := e.Next(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StepResultResponse `json:"body"`
		}{Body: stepResult(s, errs, len(errs) == 0)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "session-back",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/back",
		Summary:     "Return to the previous step",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*struct {
		Body StepResultResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.author"); err != nil {
			return nil, err
		}
		s, err := e.Back(input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StepResultResponse `json:"body"`
		}{Body: stepResult(s, nil, true)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "apply-template",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/template",
		Summary:     "Apply a template onto the draft",
		Errors:      []int{http.StatusNotFound, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		SessionID string               `path:"session_id"`
		Body      ApplyTemplateRequest `json:"body"`
	}) (*struct {
		Body ApplyTemplateResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.author"); err != nil {
			return nil, err
		}
		if input.Body.TemplateID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "templateId is required", nil)
		}
		s, sum, err := e.ApplyTemplate(ctx, input.SessionID, input.Body.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ApplyTemplateResponse `json:"body"`
		}{Body: ApplyTemplateResponse{
			Session: sessionResponse(s),
			Summary: sum.String(),
			Counts:  sum,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-template",
		Method:      http.MethodDelete,
		Path:        "/sessions/{session_id}/template",
		Summary:     "Clear the applied template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*struct {
		Body SessionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.author"); err != nil {
			return nil, err
		}
		s, err := e.ClearTemplate(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionResponse `json:"body"`
		}{Body: sessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "attach-forms",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/forms",
		Summary:     "Attach auxiliary forms",
		Errors:      []int{http.StatusNotFound, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		SessionID string             `path:"session_id"`
		Body      AttachFormsRequest `json:"body"`
	}) (*struct {
		Body SessionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.author"); err != nil {
			return nil, err
		}
		s, err := e.AttachForms(ctx, input.SessionID, input.Body.FormIDs)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionResponse `json:"body"`
		}{Body: sessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-form",
		Method:      http.MethodDelete,
		Path:        "/sessions/{session_id}/forms/{form_id}",
		Summary:     "Remove an attached form",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
		FormID    string `path:"form_id"`
	}) (*struct {
		Body SessionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.author"); err != nil {
			return nil, err
		}
		s, err := e.RemoveForm(input.SessionID, input.FormID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionResponse `json:"body"`
		}{Body: sessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-form-responses",
		Method:      http.MethodPut,
		Path:        "/sessions/{session_id}/responses",
		Summary:     "Store form responses on the draft",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string               `path:"session_id"`
		Body      FormResponsesRequest `json:"body"`
	}) (*struct {
		Body SessionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.author"); err != nil {
			return nil, err
		}
		s, err := e.SetFormResponses(input.SessionID, input.Body.Responses)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionResponse `json:"body"`
		}{Body: sessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-permit",
		Method:        http.MethodPost,
		Path:          "/sessions/{session_id}/submit",
		Summary:       "Submit the draft as a work permit",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusNotFound,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*struct {
		Body WorkPermitResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.author"); err != nil {
			return nil, err
		}
		permit, err := e.Submit(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkPermitResponse `json:"body"`
		}{Body: permitResponse(permit)}, nil
	})
}

func registerPermits(api huma.API, e *engine.Engine, checker auth.Checker) {
	huma.Register(api, huma.Operation{
		OperationID: "get-permit",
		Method:      http.MethodGet,
		Path:        "/permits/{permit_id}",
		Summary:     "Get a submitted work permit",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PermitID string `path:"permit_id"`
	}) (*struct {
		Body WorkPermitResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, checker, "permit.read"); err != nil {
			return nil, err
		}
		p, err := e.Repo.GetWorkPermit(ctx, input.PermitID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkPermitResponse `json:"body"`
		}{Body: permitResponse(p)}, nil
	})
}
