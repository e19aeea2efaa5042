package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dshills/skinroutine/internal/orchestrator"
	"github.com/dshills/skinroutine/internal/quiz"
	"github.com/dshills/skinroutine/internal/render"
	"github.com/dshills/skinroutine/internal/routine"
	"github.com/dshills/skinroutine/internal/store"
)

type generateRequest struct {
	UserID  string          `json:"user_id"`
	// Answers maps question id to answer, e.g. {"1": "Dry", "2": ["Glow"], "13": true}.
	Answers json.RawMessage `json:"answers"`
}

type generateResponse struct {
	*render.Document
	PersistError string `json:"persist_error,omitempty"`
}

type periodResponse struct {
	UserID string         `json:"user_id"`
	Period string         `json:"period"`
	Steps  []routine.Step `json:"steps"`
}

type savedResponse struct {
	UserID  string          `json:"user_id"`
	Routine routine.Routine `json:"routine"`
	Note    string          `json:"note,omitempty"`
}

func (s *Server) handleQuestions(c *gin.Context) {
	RespondOK(c, gin.H{"questions": quiz.Questions()})
}

// handleGenerate runs the quiz engine over the posted answers and generates a
// routine. With ?wait=true the response also waits for persistence.
func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, CodeBadRequest, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		RespondError(c, http.StatusBadRequest, CodeBadRequest, errors.New("user_id is required"))
		return
	}
	c.Set("user_id", userID)

	answers, err := quiz.LoadAnswers(bytes.NewReader(req.Answers))
	if err != nil {
		RespondError(c, http.StatusBadRequest, CodeInvalidAnswer, err)
		return
	}
	engine := quiz.NewEngine()
	if err := engine.Apply(answers); err != nil {
		code := CodeInvalidAnswer
		if errors.Is(err, quiz.ErrAnswerRequired) {
			code = CodeQuizIncomplete
		}
		RespondError(c, http.StatusBadRequest, code, err)
		return
	}
	p, err := engine.Finish()
	if err != nil {
		RespondError(c, http.StatusBadRequest, CodeQuizIncomplete, err)
		return
	}

	var save orchestrator.Persister
	if s.backend != nil {
		save = store.ForUser(s.backend, userID)
	}
	res, err := s.orch.GenerateFor(c.Request.Context(), userID, p, save)
	switch {
	case errors.Is(err, orchestrator.ErrGenerationInProgress):
		RespondError(c, http.StatusConflict, CodeInProgress, err)
		return
	case errors.Is(err, orchestrator.ErrInvalidProfile):
		RespondError(c, http.StatusBadRequest, CodeInvalidAnswer, err)
		return
	case err != nil:
		RespondError(c, http.StatusInternalServerError, "", err)
		return
	}

	resp := generateResponse{Document: render.FromResult(res)}
	if wait := c.Query("wait"); (wait == "true" || wait == "1") && res.Persisted != nil {
		if perr := <-res.Persisted; perr != nil {
			resp.PersistError = perr.Error()
		}
	}
	RespondOK(c, resp)
}

func (s *Server) handleLoadPeriod(c *gin.Context) {
	if s.backend == nil {
		RespondError(c, http.StatusServiceUnavailable, CodePersistDisabled, errors.New("no store configured"))
		return
	}
	userID := c.Param("user_id")
	c.Set("user_id", userID)
	label, err := store.ParseLabel(c.Param("period"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, CodeInvalidPeriod, err)
		return
	}
	steps, err := store.ForUser(s.backend, userID).LoadRoutine(c.Request.Context(), label)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	RespondOK(c, periodResponse{UserID: userID, Period: label, Steps: steps})
}

func (s *Server) handleLoadSaved(c *gin.Context) {
	if s.backend == nil {
		RespondError(c, http.StatusServiceUnavailable, CodePersistDisabled, errors.New("no store configured"))
		return
	}
	userID := c.Param("user_id")
	c.Set("user_id", userID)
	r, err := store.ForUser(s.backend, userID).LoadSaved(c.Request.Context())
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	if r.Morning == nil {
		r.Morning = []routine.Step{}
	}
	if r.Evening == nil {
		r.Evening = []routine.Step{}
	}
	RespondOK(c, savedResponse{UserID: userID, Routine: r, Note: render.FromSaved(r).Note})
}

func (s *Server) respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		RespondError(c, http.StatusNotFound, CodeNotFound, err)
		return
	}
	s.log.Error("store read failed", "error", err.Error())
	RespondError(c, http.StatusInternalServerError, CodePersistence, err)
}
