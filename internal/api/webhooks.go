package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/bellbridge/internal/api/models"
	"github.com/smazurov/bellbridge/internal/doorbell"
)

// maxWebhookPayload caps webhook request bodies.
const maxWebhookPayload = 10 * 1000

// registerWebhookRoutes registers the doorbell trigger webhooks. They are
// authorised by the shared secret rather than basic auth.
func (s *Server) registerWebhookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:  "trigger-doorbell",
		Method:       http.MethodPost,
		Path:         "/hooks/trigger/{kind}",
		Summary:      "Trigger Doorbell",
		Description:  "Report a button press or motion event from an external source for the doorbell named in the body",
		Tags:         []string{"webhooks"},
		Security:     []map[string][]string{},
		MaxBodyBytes: maxWebhookPayload,
		Errors:       []int{400, 403, 413, 422},
	}, func(ctx context.Context, input *models.TriggerRequest) (*models.TriggerResponse, error) {
		if !s.webhookAuthorised(input.Body.Secret) {
			s.logger.Warn("Webhook secret mismatch", "kind", input.Kind, "name", input.Body.Name)
			return nil, huma.Error403Forbidden("secret not included in request")
		}

		kind, ok := doorbell.ParseKind(input.Kind)
		if !ok {
			return nil, huma.Error400BadRequest("unknown trigger kind " + input.Kind)
		}

		accepted, matched := s.doorbells.Dispatch(input.Body.Name, doorbell.SourceWebhook, kind)
		s.logger.Info("Webhook dispatched",
			"kind", kind,
			"name", input.Body.Name,
			"matched", matched,
			"accepted", accepted)

		return &models.TriggerResponse{
			Body: models.TriggerData{Matched: matched, Accepted: accepted},
		}, nil
	})
}

func (s *Server) webhookAuthorised(secret string) bool {
	want := s.options.WebhookSecret
	if want == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(want)) == 1
}

// registerDoorbellRoutes registers doorbell status endpoints.
func (s *Server) registerDoorbellRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-doorbells",
		Method:      http.MethodGet,
		Path:        "/api/doorbells",
		Summary:     "List Doorbells",
		Description: "Trigger state of every configured doorbell",
		Tags:        []string{"doorbells"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.DoorbellListResponse, error) {
		list := s.doorbells.List()
		out := make([]models.DoorbellStatus, 0, len(list))
		for _, d := range list {
			st := d.Status()
			status := models.DoorbellStatus{
				Name:           st.Name,
				MotionDetected: st.MotionDetected,
				ActivityID:     st.ActivityID,
				MaxHeight:      st.MaxHeight,
			}
			if !st.LastTrigger.IsZero() {
				status.LastTrigger = st.LastTrigger.UTC().Format(time.RFC3339)
			}
			out = append(out, status)
		}
		return &models.DoorbellListResponse{
			Body: models.DoorbellListData{Doorbells: out, Count: len(out)},
		}, nil
	})
}
