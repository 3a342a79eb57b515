package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/syncer"
	"github.com/rickgao/quotesync/internal/task"
	"github.com/rickgao/quotesync/internal/version"
)

// Task kinds started over HTTP.
const (
	KindInstruments = "sync_instruments"
	KindOne         = "sync_one"
	KindBatch       = "sync_batch"
)

type instrumentsRequest struct {
	Category  string   `json:"category"`
	Exchanges []string `json:"exchanges"`
}

type oneRequest struct {
	Symbol string `json:"symbol"`
}

type batchRequest struct {
	Category  string `json:"category"`
	MaxCount  int    `json:"max_count"`
	SkipCount int    `json:"skip_count"`
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":  "healthy",
		"version": version.String(),
	}
	components := gin.H{
		"tasks": gin.H{"running": s.tasks.Running()},
	}
	if err := s.svc.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		components["timescaledb"] = gin.H{"status": "disconnected", "error": err.Error()}
	} else {
		components["timescaledb"] = "connected"
	}
	body["components"] = components
	c.JSON(status, body)
}

func (s *Server) syncInstruments(c *gin.Context) {
	var req instrumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := model.ParseCategory(req.Category)
	if err != nil {
		badRequest(c, err)
		return
	}
	exchanges := model.NormalizeExchangeCodes(req.Exchanges)
	for _, ex := range exchanges {
		if !cat.SupportsExchange(ex) {
			c.JSON(http.StatusBadRequest, gin.H{"error": cat.String() + " does not trade on " + ex})
			return
		}
	}

	var res syncer.ListResult
	tk, err := s.tasks.Run(c.Request.Context(), KindInstruments, gin.H{"category": cat.String(), "exchanges": exchanges},
		func(ctx context.Context, report task.ReportFunc) (any, error) {
			var err error
			res, err = s.svc.SyncInstrumentList(ctx, cat, exchanges)
			return res, err
		})
	if err != nil {
		writeError(c, err)
		return
	}
	if tk.Status == task.StatusFailed {
		c.JSON(http.StatusBadGateway, gin.H{"error": tk.Error, "result": res})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) syncOne(c *gin.Context) {
	var req oneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if _, _, err := model.ParseSymbol(symbol); err != nil {
		badRequest(c, err)
		return
	}

	var (
		res    syncer.OneResult
		runErr error
	)
	_, err := s.tasks.Run(c.Request.Context(), KindOne, gin.H{"symbol": symbol},
		func(ctx context.Context, report task.ReportFunc) (any, error) {
			res, runErr = s.svc.SyncOne(ctx, symbol)
			return res, runErr
		})
	if err != nil {
		writeError(c, err)
		return
	}

	switch {
	case errors.Is(runErr, syncer.ErrUnknownInstrument):
		c.JSON(http.StatusNotFound, gin.H{"error": runErr.Error(), "result": res})
	case syncer.IsFatal(runErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": runErr.Error(), "result": res})
	case runErr != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": runErr.Error(), "result": res})
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) syncBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := model.ParseCategory(req.Category)
	if err != nil {
		badRequest(c, err)
		return
	}
	if req.MaxCount < 0 || req.SkipCount < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_count and skip_count must be non-negative"})
		return
	}

	breq := syncer.BatchRequest{
		Category: cat,
		Options:  syncer.Options{MaxCount: req.MaxCount, SkipCount: req.SkipCount},
	}
	params := gin.H{"category": cat.String(), "max_count": req.MaxCount, "skip_count": req.SkipCount}
	tk, err := s.tasks.Start(KindBatch, params, func(ctx context.Context, report task.ReportFunc) (any, error) {
		return s.svc.SyncBatch(ctx, breq, func(p syncer.Progress) {
			report(task.NewProgress(p.Done, p.Total, "remaining "+p.Remaining.Round(time.Second).String()))
		})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, tk)
}

func (s *Server) listTasks(c *gin.Context) {
	tasks := s.tasks.List(task.Status(c.Query("status")))
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

func (s *Server) getTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	tk, err := s.tasks.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tk)
}

func (s *Server) stopTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	tk, err := s.tasks.Stop(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tk)
}

func (s *Server) listRuns(c *gin.Context) {
	limit := 20
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	runs, err := s.svc.Runs(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func taskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, task.ErrAlreadyRunning), errors.Is(err, task.ErrNotRunning):
		status = http.StatusConflict
	case errors.Is(err, task.ErrNotFound):
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
