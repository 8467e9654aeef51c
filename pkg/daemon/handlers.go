package daemon

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/aipc-tools/powerd/pkg/events"
	"github.com/aipc-tools/powerd/pkg/powerinfo"
	"github.com/aipc-tools/powerd/pkg/powerplan"
	"github.com/aipc-tools/powerd/pkg/version"
)

const serviceName = "power-management-api"

const (
	msgInvalidPlan = "Invalid power plan"
	msgInvalidMode = "Invalid power mode"
)

type api struct {
	engine *Engine
	hub    *events.EventHub
}

func fail(c *gin.Context, code int, err error, msg string) {
	c.IndentedJSON(code, powerinfo.ErrorResponse{Success: false, Error: msg})
	_ = c.AbortWithError(code, err)
}

func (a *api) getStatus(c *gin.Context) {
	s := a.engine.Snapshot()
	c.IndentedJSON(http.StatusOK, powerinfo.Status{
		Success:       true,
		CurrentPlan:   s.ActivePlan,
		IsACConnected: s.ACConnected,
		PowerMode:     s.Mode,
		Battery:       a.engine.BatteryInfo(),
	})
}

func (a *api) setPlan(c *gin.Context) {
	var req powerinfo.SetPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err, msgInvalidPlan)
		return
	}

	plan, err := powerplan.ParsePlan(req.Plan)
	if err != nil {
		fail(c, http.StatusBadRequest, err, msgInvalidPlan)
		return
	}

	// A client hanging up must not abort a half-finished plan change.
	s, err := a.engine.SetPlan(context.WithoutCancel(c.Request.Context()), plan)
	if err != nil {
		var applyErr *powerplan.ApplyError
		if errors.As(err, &applyErr) {
			logrus.WithField("plan", plan).Errorf("failed to set power plan: %v", err)
			c.IndentedJSON(http.StatusOK, powerinfo.SetPlanResponse{
				Success:     false,
				CurrentPlan: s.ActivePlan,
				Error:       applyErr.Error(),
			})
			return
		}
		logrus.WithField("plan", plan).Errorf("unexpected error setting power plan: %v", err)
		fail(c, http.StatusInternalServerError, err, err.Error())
		return
	}

	c.IndentedJSON(http.StatusOK, powerinfo.SetPlanResponse{
		Success:     true,
		CurrentPlan: s.ActivePlan,
	})
}

func (a *api) setMode(c *gin.Context) {
	var req powerinfo.SetModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err, msgInvalidMode)
		return
	}

	mode, err := powerplan.ParseMode(req.Mode)
	if err != nil {
		fail(c, http.StatusBadRequest, err, msgInvalidMode)
		return
	}

	// The mode sticks even if the plan change fails; the loop retries it.
	s, err := a.engine.SetMode(context.WithoutCancel(c.Request.Context()), mode)
	if err != nil {
		logrus.WithField("mode", mode).Warnf("mode set, plan change pending: %v", err)
	}

	c.IndentedJSON(http.StatusOK, powerinfo.SetModeResponse{
		Success:   true,
		PowerMode: s.Mode,
	})
}

func getHealth(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, powerinfo.Health{
		Status:  "healthy",
		Service: serviceName,
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

// streamEvents pushes hub events to the client as Server-Sent Events until
// the client goes away or the hub closes the subscription.
func (a *api) streamEvents(c *gin.Context) {
	ch := a.hub.Subscribe()
	defer a.hub.Unsubscribe(ch)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	// Send headers now; the first event may be minutes away.
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		}
	})
}
