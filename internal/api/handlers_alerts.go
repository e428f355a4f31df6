package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/neuropharmdb-server/internal/domain"
)

// targetUser resolves the user an operation acts for. Patients act for
// themselves; doctors and admins may name another user.
func targetUser(c *gin.Context, requested string) (string, error) {
	sess := session(c)
	if requested == "" || requested == sess.UserID {
		return sess.UserID, nil
	}
	if !sess.Role.CanReview() {
		return "", fmt.Errorf("acting for user %s: %w", requested, domain.ErrPermissionDenied)
	}
	return requested, nil
}

type checkRequest struct {
	DrugA     string   `json:"drug_a" binding:"required"`
	DrugB     string   `json:"drug_b" binding:"required"`
	Threshold *float64 `json:"threshold"`
}

func (s *Server) handleCheckPair(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	threshold := s.services.Engine.Threshold()
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	result, err := s.services.Engine.EvaluatePair(c.Request.Context(), session(c).UserID, req.DrugA, req.DrugB, threshold)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Timeline

type timelineRequest struct {
	UserID      string   `json:"user_id"`
	DrugID      string   `json:"drug_id" binding:"required"`
	Dosage      string   `json:"dosage"`
	Frequency   string   `json:"frequency"`
	TimeOfDay   string   `json:"time_of_day"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	MinSeverity *float64 `json:"min_severity"`
}

func (s *Server) handleListTimeline(c *gin.Context) {
	s.listTimeline(c, session(c).UserID)
}

func (s *Server) handleListUserTimeline(c *gin.Context) {
	s.listTimeline(c, c.Param("id"))
}

func (s *Server) listTimeline(c *gin.Context, userID string) {
	entries, err := s.services.Catalog.ListTimeline(c.Request.Context(), session(c), userID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "timeline": entries})
}

func (s *Server) handleAddTimelineEntry(c *gin.Context) {
	var req timelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	userID, err := targetUser(c, req.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	minSeverity := s.services.Engine.Threshold()
	if req.MinSeverity != nil {
		minSeverity = *req.MinSeverity
	}

	entry := &domain.TimelineEntry{
		UserID:    userID,
		DrugID:    req.DrugID,
		Dosage:    domain.StringPtr(req.Dosage),
		Frequency: domain.StringPtr(req.Frequency),
		TimeOfDay: domain.StringPtr(req.TimeOfDay),
		StartDate: domain.StringPtr(req.StartDate),
		EndDate:   domain.StringPtr(req.EndDate),
	}
	created, err := s.services.Engine.AddTimelineEntry(c.Request.Context(), entry, minSeverity)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry, "alerts_created": created})
}

type recheckRequest struct {
	UserID      string   `json:"user_id"`
	MinSeverity *float64 `json:"min_severity"`
}

func (s *Server) handleRecheck(c *gin.Context) {
	var req recheckRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	userID, err := targetUser(c, req.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	minSeverity := s.services.Engine.Threshold()
	if req.MinSeverity != nil {
		minSeverity = *req.MinSeverity
	}

	high, err := s.services.Engine.OnBulkRecheck(c.Request.Context(), userID, minSeverity)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "high_risk_pairs": high})
}

// Alerts

func (s *Server) handleListAlerts(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.respondError(c, err)
		return
	}
	alerts, err := s.services.Engine.ListAlerts(c.Request.Context(), session(c).UserID, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	n, err := s.services.Engine.UnreadCount(c.Request.Context(), session(c).UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	n, err := s.services.Engine.MarkAllRead(c.Request.Context(), session(c).UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

func (s *Server) handleExplainAlert(c *gin.Context) {
	exp, err := s.services.Engine.Explain(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	sess := session(c)
	if exp.Alert.UserID != sess.UserID && !sess.Role.CanReview() {
		// Foreign alerts look the same as missing ones
		s.respondError(c, fmt.Errorf("getting alert %s: %w", exp.Alert.AlertID, domain.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, exp)
}

// Suggestions

type predictRequest struct {
	DrugA string `json:"drug_a" binding:"required"`
	DrugB string `json:"drug_b" binding:"required"`
}

type suggestionRequest struct {
	UserID            string   `json:"user_id"`
	DrugA             string   `json:"drug_a" binding:"required"`
	DrugB             string   `json:"drug_b" binding:"required"`
	PredictedEffect   string   `json:"predicted_effect"`
	PredictedSeverity *float64 `json:"predicted_severity"`
	Explanation       string   `json:"explanation"`
}

type resolveRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := s.services.Suggestions.Predict(c.Request.Context(), req.DrugA, req.DrugB)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// handleSubmitSuggestion stores the given prediction, or asks the
// predictor when none is supplied
func (s *Server) handleSubmitSuggestion(c *gin.Context) {
	var req suggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	userID, err := targetUser(c, req.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	var p *domain.Prediction
	if req.PredictedEffect == "" {
		p, err = s.services.Suggestions.Predict(ctx, req.DrugA, req.DrugB)
		if err != nil {
			s.respondError(c, err)
			return
		}
	} else {
		if req.PredictedSeverity == nil {
			s.respondError(c, domain.NewValidationError("predicted_severity", "is required with predicted_effect", nil))
			return
		}
		p = &domain.Prediction{
			Effect:      req.PredictedEffect,
			Severity:    *req.PredictedSeverity,
			Explanation: req.Explanation,
		}
	}

	sg, err := s.services.Suggestions.Submit(ctx, userID, req.DrugA, req.DrugB, p)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sg)
}

func (s *Server) handleListPending(c *gin.Context) {
	pending, err := s.services.Suggestions.ListPending(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": pending})
}

func (s *Server) handleResolveSuggestion(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.respondError(c, domain.NewValidationError("id", "must be an integer", c.Param("id")))
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sg, err := s.services.Suggestions.Resolve(c.Request.Context(), session(c), id, *req.Approved)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sg)
}
