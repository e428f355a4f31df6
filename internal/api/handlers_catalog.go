package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/neuropharmdb-server/internal/domain"
	"github.com/neuropharmdb-server/internal/middleware"
)

type loginRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Email  string `json:"email" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, sess, err := s.services.Auth.Login(c.Request.Context(), req.UserID, req.Email)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"user_id": sess.UserID,
		"role":    sess.Role,
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	s.services.Auth.Logout(c.GetString(middleware.TokenKey))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMe(c *gin.Context) {
	sess, _ := middleware.SessionFrom(c)
	c.JSON(http.StatusOK, sess)
}

// session returns the caller; RequireSession guarantees it exists
func session(c *gin.Context) domain.Session {
	sess, _ := middleware.SessionFrom(c)
	return sess
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(name, "must be a non-negative integer", raw)
	}
	return n, nil
}

// Drugs

type drugRequest struct {
	DrugID    string `json:"drug_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Class     string `json:"class"`
	Mechanism string `json:"mechanism"`
}

func (s *Server) handleListDrugs(c *gin.Context) {
	drugs, err := s.services.Catalog.ListDrugs(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drugs": drugs})
}

func (s *Server) handleGetDrug(c *gin.Context) {
	drug, err := s.services.Catalog.GetDrug(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, drug)
}

func (s *Server) handleCreateDrug(c *gin.Context) {
	var req drugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	drug := &domain.Drug{
		DrugID:    req.DrugID,
		Name:      req.Name,
		Class:     domain.StringPtr(req.Class),
		Mechanism: domain.StringPtr(req.Mechanism),
	}
	if err := s.services.Catalog.CreateDrug(c.Request.Context(), session(c), drug); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, drug)
}

func (s *Server) handleDeleteDrug(c *gin.Context) {
	if err := s.services.Catalog.DeleteDrug(c.Request.Context(), session(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Effects

type effectRequest struct {
	EffectID        string   `json:"effect_id" binding:"required"`
	Name            string   `json:"name" binding:"required"`
	Category        string   `json:"category"`
	DefaultSeverity *float64 `json:"default_severity"`
}

func (s *Server) handleListEffects(c *gin.Context) {
	effects, err := s.services.Catalog.ListEffects(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"effects": effects})
}

func (s *Server) handleGetEffect(c *gin.Context) {
	effect, err := s.services.Catalog.GetEffect(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"effect":         effect,
		"severity_label": effect.SeverityLabel(),
	})
}

func (s *Server) handleCreateEffect(c *gin.Context) {
	var req effectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	effect := &domain.NeuroEffect{
		EffectID:        req.EffectID,
		Name:            req.Name,
		Category:        domain.StringPtr(req.Category),
		DefaultSeverity: req.DefaultSeverity,
	}
	if err := s.services.Catalog.CreateEffect(c.Request.Context(), session(c), effect); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, effect)
}

// Interactions

type interactionRequest struct {
	InteractionID string  `json:"interaction_id"`
	DrugA         string  `json:"drug_a" binding:"required"`
	DrugB         string  `json:"drug_b" binding:"required"`
	EffectID      string  `json:"effect_id" binding:"required"`
	SeverityScore float64 `json:"severity_score"`
	Mechanism     string  `json:"mechanism"`
	EvidenceLevel string  `json:"evidence_level"`
}

func (s *Server) handleListInteractions(c *gin.Context) {
	list, err := s.services.Resolver.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interactions": list})
}

func (s *Server) handleTopInteractions(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.respondError(c, err)
		return
	}
	list, err := s.services.Resolver.Top(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interactions": list})
}

func (s *Server) handleFindInteraction(c *gin.Context) {
	detail, err := s.services.Resolver.Find(c.Request.Context(), c.Query("drug_a"), c.Query("drug_b"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleCreateInteraction(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	in := &domain.Interaction{
		InteractionID: req.InteractionID,
		DrugA:         req.DrugA,
		DrugB:         req.DrugB,
		EffectID:      req.EffectID,
		SeverityScore: req.SeverityScore,
		Mechanism:     domain.StringPtr(req.Mechanism),
	}
	if req.EvidenceLevel != "" {
		lvl := domain.EvidenceLevel(strings.ToLower(req.EvidenceLevel))
		in.EvidenceLevel = &lvl
	}

	if err := s.services.Resolver.Add(c.Request.Context(), session(c), in); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, in)
}

func (s *Server) handleDeleteInteraction(c *gin.Context) {
	if err := s.services.Resolver.Delete(c.Request.Context(), session(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Users

type userRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	Name           string `json:"name"`
	Email          string `json:"email" binding:"required"`
	Role           string `json:"role"`
	Age            *int   `json:"age"`
	MedicalHistory string `json:"medical_history"`
}

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.services.Catalog.ListUsers(c.Request.Context(), session(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user := &domain.User{
		UserID:         req.UserID,
		Name:           req.Name,
		Email:          req.Email,
		Role:           domain.Role(req.Role),
		Age:            req.Age,
		MedicalHistory: domain.StringPtr(req.MedicalHistory),
	}
	if err := s.services.Catalog.CreateUser(c.Request.Context(), session(c), user); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	if err := s.services.Catalog.DeleteUser(c.Request.Context(), session(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
