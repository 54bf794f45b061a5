package sponsor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/mysomeid/sponsor/src/utils/common"
	"github.com/mysomeid/sponsor/src/utils/config"
	. "github.com/mysomeid/sponsor/src/utils/logger"
	"github.com/mysomeid/sponsor/src/utils/monitoring"
	"github.com/mysomeid/sponsor/src/utils/task"

	eth "github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
)

const RequestIdHeader = "X-Request-Id"

type MintBody struct {
	Account  string          `json:"account" binding:"required"`
	Platform uint8           `json:"platform"`
	Private  json.RawMessage `json:"private" binding:"required"`
}

type EventsResponse struct {
	Events interface{} `json:"events"`
	Limit  int         `json:"limit"`
}

// Rest API: mint endpoint, read queries and monitoring
type Server struct {
	*task.Task

	httpServer *http.Server
	Router     *gin.Engine
	setupOnce  sync.Once

	monitor monitoring.Monitor
	minter  *Minter
	reader  *Reader
}

func NewServer(config *config.Config) (self *Server) {
	self = new(Server)

	self.Task = task.NewTask(config, "server").
		WithOnBeforeStart(func() error {
			self.setup()
			return nil
		}).
		WithSubtaskFunc(self.run).
		WithOnStop(self.stop)

	if !config.IsDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}
	self.Router = gin.New()

	self.httpServer = &http.Server{
		Addr:              self.Config.RESTListenAddress,
		Handler:           self.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return
}

func (self *Server) WithMonitor(monitor monitoring.Monitor) *Server {
	self.monitor = monitor
	return self
}

func (self *Server) WithMinter(v *Minter) *Server {
	self.minter = v
	return self
}

func (self *Server) WithReader(v *Reader) *Server {
	self.reader = v
	return self
}

// Router with all routes registered
func (self *Server) Handler() http.Handler {
	self.setup()
	return self.Router
}

func (self *Server) setup() {
	self.setupOnce.Do(func() {
		self.Router.Use(gin.Recovery(), self.requestId)

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			self.monitor.GetPrometheusCollector(),
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		v1 := self.Router.Group("v1")
		{
			v1.GET("health", self.monitor.OnGetHealth)
			v1.GET("state", self.monitor.OnGetState)
			v1.GET("metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
			v1.POST("mint", self.onMint)
			v1.GET("events/:owner", self.onGetEvents)
			v1.GET("transactions/:hash", self.onGetTransaction)
		}

		if self.Config.Profiler.Enabled {
			runtime.SetBlockProfileRate(self.Config.Profiler.BlockProfileRate)
			pprof.Register(self.Router)
		}
	})
}

func (self *Server) requestId(c *gin.Context) {
	id := c.GetHeader(RequestIdHeader)
	if id == "" {
		id = xid.New().String()
	}
	c.Request = c.Request.WithContext(common.SetRequestId(c.Request.Context(), id))
	c.Header(RequestIdHeader, id)

	start := time.Now()
	c.Next()

	LOG(c).WithField("path", c.FullPath()).
		WithField("status", c.Writer.Status()).
		WithField("duration", time.Since(start)).
		Trace("Request handled")
}

func (self *Server) run() (err error) {
	err = self.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		self.Log.WithError(err).Error("Failed to start REST server")
		return
	}
	return nil
}

func (self *Server) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), self.Config.StopTimeout)
	defer cancel()

	err := self.httpServer.Shutdown(ctx)
	if err != nil {
		self.Log.WithError(err).Error("Failed to gracefully shutdown REST server")
		return
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (self *Server) onMint(c *gin.Context) {
	var in MintBody
	err := c.ShouldBindJSON(&in)
	if err != nil {
		LOGE(c, err, http.StatusBadRequest).Debug("Failed to parse request")
		return
	}

	if !eth.IsHexAddress(in.Account) {
		LOGE(c, errors.New("invalid account address"), http.StatusBadRequest).Debug("Invalid account")
		return
	}

	out, err := self.minter.Mint(c.Request.Context(), &MintRequest{
		Account:  eth.HexToAddress(in.Account),
		Platform: in.Platform,
		Payload:  in.Private,
	})
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			// Details stay in the logs
			LOGE(c, ErrInternal, status).WithField("cause", err.Error()).Error("Mint failed")
			return
		}
		LOGE(c, err, status).Info("Mint rejected")
		return
	}

	c.JSON(http.StatusOK, out)
}

func (self *Server) onGetEvents(c *gin.Context) {
	owner := c.Param("owner")
	if !eth.IsHexAddress(owner) {
		LOGE(c, errors.New("invalid owner address"), http.StatusBadRequest).Debug("Invalid owner")
		return
	}

	// Without a start the newest events come first
	var from *int64
	if raw, ok := c.GetQuery("from"); ok {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value < 0 {
			LOGE(c, errors.New("invalid from"), http.StatusBadRequest).Debug("Invalid from")
			return
		}
		from = &value
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		LOGE(c, errors.New("invalid limit"), http.StatusBadRequest).Debug("Invalid limit")
		return
	}

	limit = self.reader.Limit(limit)
	events, err := self.reader.GetEvents(c.Request.Context(), eth.HexToAddress(owner), from, limit)
	if err != nil {
		LOGE(c, ErrInternal, http.StatusInternalServerError).WithField("cause", err.Error()).Error("Failed to get events")
		return
	}

	c.JSON(http.StatusOK, &EventsResponse{Events: events, Limit: limit})
}

func (self *Server) onGetTransaction(c *gin.Context) {
	hash := c.Param("hash")
	raw, err := parseHash(hash)
	if err != nil {
		LOGE(c, errors.New("invalid transaction hash"), http.StatusBadRequest).Debug("Invalid hash")
		return
	}

	tx, err := self.reader.GetTransaction(c.Request.Context(), raw)
	if err != nil {
		LOGE(c, ErrInternal, http.StatusInternalServerError).WithField("cause", err.Error()).Error("Failed to get transaction")
		return
	}
	if tx == nil {
		LOGE(c, errors.New("transaction not found"), http.StatusNotFound).Debug("Transaction not found")
		return
	}

	c.JSON(http.StatusOK, tx)
}

func parseHash(s string) (out eth.Hash, err error) {
	err = out.UnmarshalText([]byte(s))
	return
}
