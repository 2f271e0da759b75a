package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"puasapush/internal/storage"
	logx "puasapush/pkg/logx"
)

type handler struct {
	deps Deps
	log  logx.Logger
}

type subscribeRequest struct {
	Subscription struct {
		Endpoint string `json:"endpoint" binding:"required"`
		Keys     struct {
			P256dh string `json:"p256dh" binding:"required"`
			Auth   string `json:"auth" binding:"required"`
		} `json:"keys" binding:"required"`
	} `json:"subscription" binding:"required"`
}

type checkinRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Date     string `json:"date" binding:"required,datetime=2006-01-02"`
	Status   string `json:"status" binding:"required,oneof=fasting not_fasting"`
}

type scheduleView struct {
	Name    string `json:"name"`
	Spec    string `json:"spec"`
	Next    string `json:"next,omitempty"`
	Prev    string `json:"prev,omitempty"`
	Running bool   `json:"running"`
	Runs    uint64 `json:"runs"`
	Skipped uint64 `json:"skipped"`
	LastErr string `json:"lastError,omitempty"`
}

func (h *handler) health(c *gin.Context) {
	resp := gin.H{"ok": true}
	if h.deps.Scheduler != nil {
		snap := h.deps.Scheduler.Snapshot()
		items := make([]scheduleView, 0, len(snap.Schedules))
		for _, it := range snap.Schedules {
			v := scheduleView{Name: it.Name, Spec: it.Spec, Running: it.Running, Runs: it.Runs, Skipped: it.Skipped, LastErr: it.LastErr}
			if !it.Next.IsZero() {
				v.Next = it.Next.Format("2006-01-02T15:04:05Z07:00")
			}
			if !it.Prev.IsZero() {
				v.Prev = it.Prev.Format("2006-01-02T15:04:05Z07:00")
			}
			items = append(items, v)
		}
		resp["scheduler"] = gin.H{
			"started":   snap.Started,
			"timezone":  snap.Timezone,
			"schedules": items,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) config(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Public)
}

func (h *handler) ramadanWindow(c *gin.Context) {
	w, err := h.deps.Window.Get(c.Request.Context(), h.deps.Now())
	if err != nil {
		h.log.Warn("ramadan window unavailable", logx.Err(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "observance window unavailable"})
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *handler) subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub := req.Subscription
	err := h.deps.Store.Upsert(c.Request.Context(), sub.Endpoint, storage.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth})
	if err != nil {
		h.log.Error("subscribe failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handler) checkin(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok, err := h.deps.Store.MarkAnswered(c.Request.Context(), req.Endpoint, req.Date)
	if err != nil {
		h.log.Error("checkin failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record check-in"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription endpoint not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": req.Status, "date": req.Date})
}
