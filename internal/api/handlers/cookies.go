package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/renderd/internal/cookies"
)

// SessionApplier pushes a cookie set into the live browser session, if any.
type SessionApplier interface {
	ApplyCookies(recs []cookies.Record)
}

// StatusResponse is the generic ack body for mutating cookie operations.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ListCookiesOutput is the response for GET /cookies.
type ListCookiesOutput struct {
	Body []cookies.Record
}

// UpdateCookiesInput is the request for POST /cookies.
type UpdateCookiesInput struct {
	Body []cookies.Record
}

// UpdateCookiesOutput is the response for POST /cookies.
type UpdateCookiesOutput struct {
	Body StatusResponse
}

// DeleteCookiesInput accepts names as repeated query values and/or a JSON
// body of the form {"names": [...]}.
type DeleteCookiesInput struct {
	Names   []string `query:"names" doc:"Names of cookies to delete (repeatable)"`
	RawBody []byte   `doc:"Optional JSON body: {\"names\": [\"a\", \"b\"]}"`
}

// DeleteCookiesOutput is the response for DELETE /cookies.
type DeleteCookiesOutput struct {
	Body StatusResponse
}

// CookiesHandler handles cookie jar CRUD.
type CookiesHandler struct {
	store   *cookies.Store
	applier SessionApplier
	logger  *slog.Logger
}

// NewCookiesHandler creates a cookies handler. applier may be nil when there
// is no live session to keep in sync.
func NewCookiesHandler(store *cookies.Store, applier SessionApplier, logger *slog.Logger) *CookiesHandler {
	return &CookiesHandler{store: store, applier: applier, logger: logger}
}

// List returns the persisted jar.
func (h *CookiesHandler) List(ctx context.Context) *ListCookiesOutput {
	return &ListCookiesOutput{Body: h.store.Load()}
}

// Update merges the submitted records into the jar and re-applies the result
// to the live session so in-memory and on-disk state never diverge.
func (h *CookiesHandler) Update(ctx context.Context, in *UpdateCookiesInput) (*UpdateCookiesOutput, error) {
	jar, skipped, err := h.store.MergeUpsert(in.Body)
	if err != nil {
		h.logger.Error("cookie merge failed", "error", err)
		return nil, huma.Error500InternalServerError("failed to update cookies")
	}

	if h.applier != nil {
		h.applier.ApplyCookies(jar)
	}

	msg := fmt.Sprintf("%d cookie(s) stored", len(jar))
	if skipped > 0 {
		msg = fmt.Sprintf("%s, %d invalid record(s) skipped", msg, skipped)
	}
	h.logger.Info("cookies updated", "total", len(jar), "skipped", skipped)

	return &UpdateCookiesOutput{Body: StatusResponse{Status: "success", Message: msg}}, nil
}

// Delete removes every record matching the given names, regardless of
// domain.
func (h *CookiesHandler) Delete(ctx context.Context, in *DeleteCookiesInput) (*DeleteCookiesOutput, error) {
	names := append([]string{}, in.Names...)
	if len(in.RawBody) > 0 {
		var body struct {
			Names []string `json:"names"`
		}
		if err := json.Unmarshal(in.RawBody, &body); err != nil {
			return nil, huma.Error400BadRequest("body must be JSON of the form {\"names\": [...]}")
		}
		names = append(names, body.Names...)
	}
	if len(names) == 0 {
		return nil, huma.Error400BadRequest("no cookie names given")
	}

	jar, err := h.store.DeleteByName(names)
	if err != nil {
		h.logger.Error("cookie delete failed", "error", err)
		return nil, huma.Error500InternalServerError("failed to delete cookies")
	}

	if h.applier != nil {
		h.applier.ApplyCookies(jar)
	}

	h.logger.Info("cookies deleted", "names", names, "remaining", len(jar))
	return &DeleteCookiesOutput{Body: StatusResponse{
		Status:  "success",
		Message: fmt.Sprintf("deleted cookies named %v", names),
	}}, nil
}
