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
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"fieldline/internal/domain"
	"fieldline/internal/engine"
	"fieldline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"slot_conflict"`
	Message string         `json:"message" example:"requested time conflicts with 1 existing job(s)"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Fieldline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
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
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Fieldline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerTenants(group, cfg.Engine)
	registerContacts(group, cfg.Engine)
	registerServices(group, cfg.Engine)
	registerJobs(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerPublicBooking(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

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

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", ve.Error(), nil)
	}
	var nfe engine.NotFoundError
	if errors.As(err, &nfe) {
		return newAPIError(http.StatusNotFound, "not_found", nfe.Error(), map[string]any{"kind": nfe.Kind, "id": nfe.ID})
	}
	var ue engine.UnavailableError
	if errors.As(err, &ue) {
		return newAPIError(http.StatusUnprocessableEntity, "service_unavailable_for_booking", ue.Error(), nil)
	}
	var ce engine.ConflictError
	if errors.As(err, &ce) {
		conflicts := make([]map[string]any, 0, len(ce.Conflicts))
		for _, j := range ce.Conflicts {
			c := map[string]any{"id": j.ID, "title": j.Title}
			if j.StartTime != nil {
				c["start_time"] = *j.StartTime
			}
			if j.EndTime != nil {
				c["end_time"] = *j.EndTime
			}
			conflicts = append(conflicts, c)
		}
		return newAPIError(http.StatusConflict, "slot_conflict", ce.Error(), map[string]any{
			"conflicts": conflicts,
			"total":     ce.Total,
		})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "slot_conflict"
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
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Fieldline API Docs</title>
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

func registerTenants(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-tenant",
		Method:        http.MethodPost,
		Path:          "/tenants",
		Summary:       "Create tenant",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTenantRequest `json:"body"`
	}) (*struct {
		Body TenantResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		id := ""
		if input.Body.ID != nil {
			id = *input.Body.ID
		}
		t, err := e.CreateTenant(ctx, id, input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TenantResponse `json:"body"`
		}{Body: tenantResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/tenants",
		Summary:     "List tenants",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []TenantResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListTenants(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]TenantResponse, 0, len(items))
		for _, t := range items {
			out = append(out, tenantResponse(t))
		}
		return &struct {
			Body []TenantResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}",
		Summary:     "Get tenant",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenant_id"`
	}) (*struct {
		Body TenantResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTenant(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TenantResponse `json:"body"`
		}{Body: tenantResponse(t)}, nil
	})
}

func registerContacts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-contact",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/contacts",
		Summary:       "Create contact",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TenantID string               `path:"tenant_id"`
		Body     CreateContactRequest `json:"body"`
	}) (*struct {
		Body ContactResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		details := engine.ContactDetails{Name: input.Body.Name, Email: input.Body.Email}
		if input.Body.Phone != nil {
			details.Phone = *input.Body.Phone
		}
		c, err := e.CreateContact(ctx, input.TenantID, details, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ContactResponse `json:"body"`
		}{Body: contactResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contacts",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/contacts",
		Summary:     "List contacts",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenant_id"`
	}) (*struct {
		Body []ContactResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListContacts(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]ContactResponse, 0, len(items))
		for _, c := range items {
			out = append(out, contactResponse(c))
		}
		return &struct {
			Body []ContactResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerServices(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-service",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/services",
		Summary:       "Create service",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TenantID string               `path:"tenant_id"`
		Body     CreateServiceRequest `json:"body"`
	}) (*struct {
		Body ServiceResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateService(ctx, engine.ServiceOptions{
			TenantID:     input.TenantID,
			Name:         input.Body.Name,
			Duration:     input.Body.DurationMinutes,
			Availability: availabilitySettings(input.Body.Availability),
			Booking:      bookingSettings(input.Body.Booking),
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ServiceResponse `json:"body"`
		}{Body: serviceResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-services",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/services",
		Summary:     "List services",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenant_id"`
	}) (*struct {
		Body []ServiceResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListServices(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]ServiceResponse, 0, len(items))
		for _, s := range items {
			out = append(out, serviceResponse(s))
		}
		return &struct {
			Body []ServiceResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-service-active",
		Method:      http.MethodPatch,
		Path:        "/tenants/{tenant_id}/services/{service_id}/active",
		Summary:     "Enable or disable bookings for a service",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TenantID  string `path:"tenant_id"`
		ServiceID string `path:"service_id"`
		Body      struct {
			Active bool `json:"active"`
		} `json:"body"`
	}) (*struct {
		Body ServiceResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.SetServiceActive(ctx, input.TenantID, input.ServiceID, input.Body.Active); err != nil {
			return nil, handleError(err)
		}
		s, err := e.Repo.GetService(ctx, input.ServiceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ServiceResponse `json:"body"`
		}{Body: serviceResponse(s)}, nil
	})
}

func registerJobs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/jobs",
		Summary:       "Schedule a job or recurring job family",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		TenantID string           `path:"tenant_id"`
		Body     CreateJobRequest `json:"body"`
	}) (*struct {
		Body ScheduleResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.ScheduleJobOptions{
			TenantID:   input.TenantID,
			Title:      input.Body.Title,
			Start:      input.Body.StartTime,
			End:        input.Body.EndTime,
			Breaks:     breakPeriods(input.Body.Breaks),
			Recurrence: recurrenceOptions(input.Body.Recurrence),
			ActorID:    actorID,
		}
		if input.Body.ContactID != nil {
			opts.ContactID = *input.Body.ContactID
		}
		if input.Body.ServiceID != nil {
			opts.ServiceID = *input.Body.ServiceID
		}
		res, err := e.ScheduleJob(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ScheduleResponse `json:"body"`
		}{Body: ScheduleResponse{
			Jobs:       mapJobs(res.Jobs),
			Recurrence: recurrenceResponse(res.Recurrence),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/jobs",
		Summary:     "List jobs",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		TenantID        string `path:"tenant_id"`
		Status          string `query:"status" enum:"pending_confirmation,scheduled,in_progress,completed,cancelled" required:"false"`
		ContactID       string `query:"contact_id" required:"false"`
		RecurrenceID    string `query:"recurrence_id" required:"false"`
		From            string `query:"from" required:"false" format:"date-time"`
		To              string `query:"to" required:"false" format:"date-time"`
		IncludeArchived bool   `query:"include_archived" required:"false"`
		Limit           int    `query:"limit" required:"false"`
	}) (*struct {
		Body []JobResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListJobs(ctx, repo.JobFilters{
			TenantID:        input.TenantID,
			Status:          input.Status,
			ContactID:       input.ContactID,
			RecurrenceID:    input.RecurrenceID,
			From:            input.From,
			To:              input.To,
			IncludeArchived: input.IncludeArchived,
			Limit:           input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []JobResponse `json:"body"`
		}{Body: mapJobs(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/jobs/{job_id}",
		Summary:     "Get job",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenant_id"`
		JobID    string `path:"job_id"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		j, err := e.Repo.GetJob(ctx, input.TenantID, input.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-job-status",
		Method:      http.MethodPatch,
		Path:        "/tenants/{tenant_id}/jobs/{job_id}/status",
		Summary:     "Transition a job's lifecycle status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TenantID string              `path:"tenant_id"`
		JobID    string              `path:"job_id"`
		Body     SetJobStatusRequest `json:"body"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.SetJobStatus(ctx, input.TenantID, input.JobID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "confirm-job",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/jobs/{job_id}/confirm",
		Summary:     "Confirm a pending booking",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenant_id"`
		JobID    string `path:"job_id"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.ConfirmJob(ctx, input.TenantID, input.JobID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decline-job",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/jobs/{job_id}/decline",
		Summary:     "Decline a pending booking",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenant_id"`
		JobID    string `path:"job_id"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.DeclineJob(ctx, input.TenantID, input.JobID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reschedule-job",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/jobs/{job_id}/reschedule",
		Summary:     "Move a job to a new time range",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		TenantID string               `path:"tenant_id"`
		JobID    string               `path:"job_id"`
		Body     RescheduleJobRequest `json:"body"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.RescheduleJob(ctx, input.TenantID, input.JobID, input.Body.StartTime, input.Body.EndTime, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-job",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/jobs/{job_id}/archive",
		Summary:     "Archive a job",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenant_id"`
		JobID    string `path:"job_id"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.ArchiveJob(ctx, input.TenantID, input.JobID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-job",
		Method:      http.MethodDelete,
		Path:        "/tenants/{tenant_id}/jobs/{job_id}",
		Summary:     "Permanently delete a job",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenant_id"`
		JobID    string `path:"job_id"`
	}) (*struct{}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteJob(ctx, input.TenantID, input.JobID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/events",
		Summary:     "List recent audit events",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		TenantID   string `path:"tenant_id"`
		Limit      int    `query:"limit" required:"false"`
		Type       string `query:"type" required:"false"`
		EntityKind string `query:"entity_kind" required:"false"`
		EntityID   string `query:"entity_id" required:"false"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		if authErr := requireTenant(ctx, input.TenantID); authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		items, err := e.Repo.LatestEvents(ctx, input.TenantID, limit, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]EventResponse, 0, len(items))
		for _, ev := range items {
			out = append(out, eventResponse(ev))
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: out}, nil
	})
}

// registerPublicBooking exposes the unauthenticated booking surface that
// end clients reach through a service's share link.
func registerPublicBooking(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "public-get-service",
		Method:      http.MethodGet,
		Path:        "/public/services/{service_id}",
		Summary:     "Public service details",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ServiceID string `path:"service_id"`
	}) (*struct {
		Body PublicServiceResponse `json:"body"`
	}, error) {
		s, err := e.Repo.GetService(ctx, input.ServiceID)
		if err != nil {
			return nil, handleError(err)
		}
		if !s.Active {
			return nil, newAPIError(http.StatusNotFound, "not_found", "service not found", nil)
		}
		return &struct {
			Body PublicServiceResponse `json:"body"`
		}{Body: publicServiceResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "public-availability",
		Method:      http.MethodGet,
		Path:        "/public/services/{service_id}/availability",
		Summary:     "Open slots for a service",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ServiceID string `path:"service_id"`
		From      string `query:"from" required:"false" format:"date-time"`
		To        string `query:"to" required:"false" format:"date-time"`
	}) (*struct {
		Body []DayAvailabilityResponse `json:"body"`
	}, error) {
		from, perr := optionalTimeParam(input.From, "from")
		if perr != nil {
			return nil, perr
		}
		to, perr := optionalTimeParam(input.To, "to")
		if perr != nil {
			return nil, perr
		}
		days, err := e.Availability(ctx, input.ServiceID, from, to)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DayAvailabilityResponse `json:"body"`
		}{Body: availabilityResponse(days)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "public-book-slot",
		Method:        http.MethodPost,
		Path:          "/public/services/{service_id}/book",
		Summary:       "Book a slot",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ServiceID string          `path:"service_id"`
		Body      BookSlotRequest `json:"body"`
	}) (*struct {
		Body BookingResponse `json:"body"`
	}, error) {
		opts := engine.BookSlotOptions{
			ServiceID:  input.ServiceID,
			Start:      input.Body.StartTime,
			Recurrence: recurrenceOptions(input.Body.Recurrence),
		}
		if input.Body.ContactID != nil {
			opts.ContactID = *input.Body.ContactID
		}
		if input.Body.Contact != nil {
			opts.Contact = engine.ContactDetails{
				Name:  input.Body.Contact.Name,
				Email: input.Body.Contact.Email,
			}
			if input.Body.Contact.Phone != nil {
				opts.Contact.Phone = *input.Body.Contact.Phone
			}
		}
		res, err := e.BookSlot(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		status := domain.JobStatusScheduled
		if len(res.Jobs) > 0 {
			status = res.Jobs[0].Status
		}
		return &struct {
			Body BookingResponse `json:"body"`
		}{Body: BookingResponse{
			Jobs:       mapJobs(res.Jobs),
			Recurrence: recurrenceResponse(res.Recurrence),
			Contact:    contactResponse(res.Contact),
			Status:     status,
		}}, nil
	})
}

func optionalTimeParam(v, name string) (*time.Time, huma.StatusError) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("%s must be RFC3339", name), nil)
	}
	return &t, nil
}
