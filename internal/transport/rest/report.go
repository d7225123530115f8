package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/report"
	"github.com/heartmarshall/safety-pulse/internal/service/trust"
	"github.com/heartmarshall/safety-pulse/internal/wire"
	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// reportService defines the minimal interface needed by ReportHandler.
type reportService interface {
	Submit(ctx context.Context, in report.SubmitInput) (*report.SubmitResult, error)
	ListReports(ctx context.Context, in report.ListInput) ([]domain.Signal, error)
	CastVote(ctx context.Context, signalID uuid.UUID, isTrue bool) (*report.VoteResult, error)
	RemoveVote(ctx context.Context, signalID uuid.UUID) (*report.VoteResult, error)
	GetSignal(ctx context.Context, signalID uuid.UUID) (domain.Signal, error)
	GetSummary(ctx context.Context, signalID uuid.UUID) (trust.Summary, error)
	CheckVote(ctx context.Context, signalID uuid.UUID) (*report.VoteCheck, error)
	Delete(ctx context.Context, signalID uuid.UUID, in report.DeleteInput) (*report.DeleteResult, error)
}

// ReportHandler serves report and vote endpoints.
type ReportHandler struct {
	svc     reportService
	labeler func(total int) domain.ConfidenceLabel
	log     *slog.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(svc reportService, labeler func(total int) domain.ConfidenceLabel, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, labeler: labeler, log: logger.With("handler", "report")}
}

// Submit handles POST /api/v1/report.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitReportRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		h.handleError(w, r, err)
		return
	}

	res, err := h.svc.Submit(r.Context(), report.SubmitInput{
		Type:     domain.SignalType(req.SignalType),
		Severity: req.Severity,
		Location: domain.Location{Lat: req.Latitude, Lng: req.Longitude},
		Context:  req.Context,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, api.SubmitReportResponse{
		Message:    "Report submitted",
		SignalID:   res.Signal.ID,
		TrustScore: res.Signal.TrustScore,
		Confidence: string(h.labeler(res.Signal.TotalVotes())),
		Version:    res.Version,
	})
}

// List handles GET /api/v1/reports.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	area, err := parseArea(q, true)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	limit, err := optionalInt(q, "limit")
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	sigs, err := h.svc.ListReports(r.Context(), report.ListInput{
		Area:       area,
		TimeWindow: report.TimeWindow(q.Get("time_window")),
		Limit:      limit,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	reports := wire.Reports(sigs, h.labeler)
	writeJSON(w, http.StatusOK, api.ReportList{Reports: reports, Count: len(reports)})
}

// Vote handles POST /api/v1/reports/{id}/vote.
func (h *ReportHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	var req api.VoteRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		h.handleError(w, r, err)
		return
	}
	if req.IsTrue == nil {
		h.handleError(w, r, domain.NewValidationError("is_true", "required"))
		return
	}

	res, err := h.svc.CastVote(r.Context(), id, *req.IsTrue)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Summary(id, res.Summary, res.Signal.Status, res.Version))
}

// RemoveVote handles DELETE /api/v1/reports/{id}/vote.
func (h *ReportHandler) RemoveVote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	res, err := h.svc.RemoveVote(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Summary(id, res.Summary, res.Signal.Status, res.Version))
}

// Votes handles GET /api/v1/reports/{id}/votes.
func (h *ReportHandler) Votes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	sig, err := h.svc.GetSignal(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	sum, err := h.svc.GetSummary(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Summary(id, sum, sig.Status, sig.Version))
}

// CheckVote handles GET /api/v1/reports/{id}/vote/check.
func (h *ReportHandler) CheckVote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	check, err := h.svc.CheckVote(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := api.VoteCheck{SignalID: id, HasVoted: check.HasVoted}
	if check.Vote != nil {
		isTrue, castAt := check.Vote.IsTrue, check.Vote.CastAt
		resp.IsTrue, resp.CastAt = &isTrue, &castAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/reports/{id}. The body is optional.
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var req api.DeleteRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		h.handleError(w, r, err)
		return
	}
	in := report.DeleteInput{}
	if req.Reason != "" {
		in.Reason = &req.Reason
	}

	res, err := h.svc.Delete(r.Context(), id, in)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.DeleteResponse{
		SignalID:     res.Signal.ID,
		Status:       string(res.Signal.Status),
		VotesRemoved: res.VotesRemoved,
		Version:      res.Version,
	})
}

func (h *ReportHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	handleError(h.log, w, r, err)
}
