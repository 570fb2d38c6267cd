package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/app"
	"github.com/shrimpsizemoose/mentorloop/internal/lifecycle"
	"github.com/shrimpsizemoose/mentorloop/internal/metrics"
	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

type Handler struct {
	service *app.Service
}

func NewHandler(service *app.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// authedHandler serves a request for a resolved principal and returns the
// status it wrote.
type authedHandler func(w http.ResponseWriter, r *http.Request, p models.Principal) int

func (h *Handler) Register(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		handler authedHandler
	}{
		{"GET /api/v1/challenges", h.HandleListChallenges},
		{"POST /api/v1/challenges", h.HandlePublishChallenge},
		{"GET /api/v1/challenges/{challenge}", h.HandleGetChallenge},
		{"POST /api/v1/challenges/{challenge}/submissions", h.HandleSubmit},
		{"GET /api/v1/challenges/{challenge}/submissions", h.HandleVisibleSubmissions},
		{"GET /api/v1/challenges/{challenge}/pending", h.HandlePendingReviews},
		{"PUT /api/v1/submissions/{submission}", h.HandleEditSubmission},
		{"POST /api/v1/submissions/{submission}/review", h.HandleReview},
		{"POST /api/v1/submissions/{submission}/comments", h.HandleAddComment},
		{"GET /api/v1/submissions/{submission}/comments", h.HandleListComments},
		{"GET /api/v1/users/{user}/progress", h.HandleProgress},
		{"GET /api/v1/users/{user}/rewards", h.HandleRewards},
		{"GET /api/v1/users/{user}/enrollments", h.HandleListEnrollments},
		{"POST /api/v1/courses/{course}/enrollments", h.HandleEnroll},
		{"POST /api/v1/courses/{course}/enrollments/{user}/complete", h.HandleCompleteEnrollment},
		{"GET /api/v1/leaderboard", h.HandleLeaderboard},
		{"GET /api/v1/admin/stats", h.HandleAdminStats},
	}
	for _, route := range routes {
		mux.Handle(route.pattern, h.wrap(route.pattern, route.handler))
	}
}

func (h *Handler) wrap(pattern string, next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := http.StatusOK
		defer func() {
			duration := time.Since(start).Seconds()
			metrics.APIRequestDuration.WithLabelValues(
				pattern,
				r.Method,
				strconv.Itoa(status),
			).Observe(duration)
		}()

		if !h.service.ValidateHeaders(r.Header) {
			status = respondError(w, http.StatusForbidden, string(lifecycle.KindForbidden), "these are not the droids you are looking for")
			return
		}

		p, err := h.service.Auth.Principal(r)
		if err != nil {
			logger.Error.Printf("Auth failed: %v", err)
			status = respondError(w, http.StatusUnauthorized, codeUnauthenticated, "Unauthorized")
			return
		}

		status = next(w, r, p)
	})
}

func decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func badBody(w http.ResponseWriter, err error) int {
	logger.Debug.Printf("Invalid request body: %v", err)
	return respondError(w, http.StatusBadRequest, string(lifecycle.KindInvalidArgument), "Invalid request body")
}

func (h *Handler) HandleListChallenges(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	filter := lifecycle.ChallengeFilter{
		CourseID: r.URL.Query().Get("course"),
		Bucket:   lifecycle.Bucket(r.URL.Query().Get("bucket")),
	}

	board, err := h.service.Engine.ListChallenges(r.Context(), p, filter)
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, board)
}

func (h *Handler) HandlePublishChallenge(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	var in models.NewChallenge
	if err := decode(r, &in); err != nil {
		return badBody(w, err)
	}

	challenge, err := h.service.Engine.PublishChallenge(r.Context(), p, in)
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusCreated, challenge)
}

func (h *Handler) HandleGetChallenge(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	challenge, err := h.service.Engine.GetChallenge(r.Context(), r.PathValue("challenge"))
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, challenge)
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	var in models.SubmissionInput
	if err := decode(r, &in); err != nil {
		return badBody(w, err)
	}

	submission, err := h.service.Engine.Submit(r.Context(), p, r.PathValue("challenge"), in)
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusCreated, submission)
}

func (h *Handler) HandleVisibleSubmissions(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	visible, err := h.service.Engine.ListVisibleSubmissions(r.Context(), p, r.PathValue("challenge"))
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, visible)
}

func (h *Handler) HandlePendingReviews(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	pending, err := h.service.Engine.ListPendingReviews(r.Context(), p, r.PathValue("challenge"))
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, pending)
}

func (h *Handler) HandleEditSubmission(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	var in models.SubmissionInput
	if err := decode(r, &in); err != nil {
		return badBody(w, err)
	}

	submission, err := h.service.Engine.EditSubmission(r.Context(), p, r.PathValue("submission"), in)
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, submission)
}

func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	var in models.ReviewInput
	if err := decode(r, &in); err != nil {
		return badBody(w, err)
	}

	submission, err := h.service.Engine.Review(r.Context(), p, r.PathValue("submission"), in)
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, submission)
}

func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	var in models.CommentInput
	if err := decode(r, &in); err != nil {
		return badBody(w, err)
	}

	comment, err := h.service.Engine.AddComment(r.Context(), p, r.PathValue("submission"), in)
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusCreated, comment)
}

func (h *Handler) HandleListComments(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	comments, err := h.service.Engine.ListComments(r.Context(), p, r.PathValue("submission"))
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, comments)
}

func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	userID := r.PathValue("user")
	if userID == "me" {
		userID = p.ID
	}

	progress, err := h.service.Engine.Progress(r.Context(), userID)
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, progress)
}

func (h *Handler) HandleRewards(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	userID := r.PathValue("user")
	if userID == "me" {
		userID = p.ID
	}

	grants, err := h.service.Engine.RewardHistory(r.Context(), p, userID)
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, grants)
}

func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	enrollment, err := h.service.Engine.Enroll(r.Context(), p, r.PathValue("course"))
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusCreated, enrollment)
}

func (h *Handler) HandleCompleteEnrollment(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	enrollment, err := h.service.Engine.CompleteEnrollment(r.Context(), p, r.PathValue("user"), r.PathValue("course"))
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, enrollment)
}

func (h *Handler) HandleListEnrollments(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	userID := r.PathValue("user")
	if userID == "me" {
		userID = p.ID
	}

	enrollments, err := h.service.Engine.ListEnrollments(r.Context(), p, userID)
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, enrollments)
}

func (h *Handler) HandleLeaderboard(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	limit := h.service.Config.Engine.LeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return respondError(w, http.StatusBadRequest, string(lifecycle.KindInvalidArgument), "limit must be a number")
		}
		limit = n
	}

	board, err := h.service.Engine.Leaderboard(r.Context(), limit)
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, board)
}

func (h *Handler) HandleAdminStats(w http.ResponseWriter, r *http.Request, p models.Principal) int {
	stats, err := h.service.Engine.AdminStats(r.Context(), p)
	if err != nil {
		return respondEngineError(w, err)
	}
	return respond(w, http.StatusOK, stats)
}
