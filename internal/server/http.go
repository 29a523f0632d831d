package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"StokVault/internal/core"
	"StokVault/internal/ledger"
	"StokVault/internal/member"
	"StokVault/internal/observability"
	"StokVault/internal/query"
	"StokVault/internal/state"
)

// HTTPServer exposes the vault's public operations and queries over JSON.
type HTTPServer struct {
	vault   *core.Vault
	queries *query.Service
	health  *observability.HealthChecker
	log     zerolog.Logger
}

func NewHTTPServer(vault *core.Vault, queries *query.Service, health *observability.HealthChecker) *HTTPServer {
	return &HTTPServer{
		vault:   vault,
		queries: queries,
		health:  health,
		log:     observability.NewLogger("http"),
	}
}

// Router builds the gin engine with all routes mounted.
func (s *HTTPServer) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/healthz", gin.WrapF(s.health.LivenessHandler))
	router.GET("/readyz", gin.WrapF(s.health.ReadinessHandler))

	v1 := router.Group("/v1")
	{
		v1.POST("/members/join", s.handleJoin)
		v1.POST("/members/exit", s.handleExit)
		v1.GET("/members/:id", s.handleGetMember)
		v1.GET("/members/:id/health-factor", s.handleGetHealthFactor)
		v1.GET("/members/:id/score", s.handleGetScore)
		v1.GET("/members/:id/violations", s.handleGetViolations)

		v1.POST("/rounds/start", s.handleStartRound)
		v1.POST("/rounds/claim", s.handleClaim)
		v1.POST("/rounds/complete", s.handleComplete)
		v1.GET("/rounds/current", s.handleGetCurrentRound)
		v1.GET("/rounds/current/composition", s.handleGetComposition)
		v1.GET("/rounds/next-recipient", s.handleNextRecipient)
		v1.GET("/rounds/history", s.handleRoundHistory)
		v1.GET("/rounds/:id", s.handleGetRound)

		v1.POST("/insurance/distribute", s.handleDistribute)
		v1.GET("/insurance/:asset", s.handleInsuranceBalance)
	}

	return router
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// statusFor maps domain errors onto HTTP status codes by kind:
// validation 400, unknown entities 404, state preconditions 409,
// resource failures 422.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrUnregisteredAsset),
		errors.Is(err, core.ErrBelowMinStake),
		errors.Is(err, member.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, member.ErrNotMember),
		errors.Is(err, member.ErrNoMembers):
		return http.StatusNotFound
	case errors.Is(err, member.ErrAlreadyMember),
		errors.Is(err, core.ErrRoundNotActive),
		errors.Is(err, core.ErrPreviousRoundNotCompleted),
		errors.Is(err, core.ErrNotRecipient),
		errors.Is(err, core.ErrAlreadyClaimed),
		errors.Is(err, core.ErrRoundNotEnded),
		errors.Is(err, core.ErrMustCompleteRound),
		errors.Is(err, core.ErrRoundInProgress),
		errors.Is(err, state.ErrNoEligibleMembers):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientLocked),
		errors.Is(err, ledger.ErrNonPositiveAmount):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

type joinRequest struct {
	MemberID   uuid.UUID `json:"member_id" binding:"required"`
	Assets     []string  `json:"assets" binding:"required"`
	Deposits   []int64   `json:"deposits" binding:"required"`
	WeightsBps []int64   `json:"weights_bps" binding:"required"`
}

func (s *HTTPServer) handleJoin(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := s.vault.Join(req.MemberID, req.Assets, req.Deposits, req.WeightsBps)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"member_id":   m.ID,
		"position":    m.Position,
		"total_value": m.TotalValue(),
		"score_bps":   m.ScoreBps,
	})
}

type memberRequest struct {
	MemberID uuid.UUID `json:"member_id" binding:"required"`
}

func (s *HTTPServer) handleExit(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := s.vault.Exit(req.MemberID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member_id": m.ID, "score_bps": m.ScoreBps})
}

type startRoundRequest struct {
	Caller     uuid.UUID `json:"caller" binding:"required"`
	Assets     []string  `json:"assets" binding:"required"`
	WeightsBps []int64   `json:"weights_bps" binding:"required"`
}

func (s *HTTPServer) handleStartRound(c *gin.Context) {
	var req startRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := s.vault.StartRound(req.Caller, req.Assets, req.WeightsBps)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"round_id":      r.ID,
		"recipient":     r.Recipient,
		"end_time_unix": r.EndTime.Unix(),
	})
}

type callerRequest struct {
	Caller uuid.UUID `json:"caller" binding:"required"`
}

func (s *HTTPServer) handleClaim(c *gin.Context) {
	var req callerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := s.vault.Claim(req.Caller)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round_id": r.ID, "state": r.State.String()})
}

func (s *HTTPServer) handleComplete(c *gin.Context) {
	var req callerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.vault.Complete(req.Caller)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"round_id":          res.Round.ID,
		"health_factor_bps": res.HealthFactorBps,
		"violation":         res.Violation,
		"deficit_total":     res.DeficitTotal,
		"penalty_total":     res.PenaltyTotal,
		"score_bps":         res.ScoreBps,
	})
}

func (s *HTTPServer) handleDistribute(c *gin.Context) {
	var req callerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.vault.DistributeInsurance(req.Caller)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": len(res.Payouts)})
}

func memberID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *HTTPServer) handleGetMember(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	m, err := s.queries.Member(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *HTTPServer) handleGetHealthFactor(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	hf, err := s.queries.HealthFactor(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member_id": id, "health_factor_bps": hf})
}

func (s *HTTPServer) handleGetScore(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	score, err := s.queries.Score(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

func (s *HTTPServer) handleGetViolations(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	entries, err := s.queries.ViolationHistory(c.Request.Context(), id, 100)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"violations": entries})
}

func (s *HTTPServer) handleGetCurrentRound(c *gin.Context) {
	r, err := s.queries.CurrentRound()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *HTTPServer) handleGetComposition(c *gin.Context) {
	comp, err := s.queries.Composition()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comp)
}

func (s *HTTPServer) handleGetRound(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid round id"})
		return
	}
	r, err := s.queries.Round(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *HTTPServer) handleNextRecipient(c *gin.Context) {
	m, err := s.queries.NextRecipient()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member_id": m.MemberID, "position": m.Position})
}

func (s *HTTPServer) handleRoundHistory(c *gin.Context) {
	entries, err := s.queries.RoundHistory(c.Request.Context(), 100)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": entries})
}

func (s *HTTPServer) handleInsuranceBalance(c *gin.Context) {
	asset := c.Param("asset")
	bal, err := s.queries.InsuranceBalance(asset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "balance": bal})
}
