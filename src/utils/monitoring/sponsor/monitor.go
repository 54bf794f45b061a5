package monitor_sponsor

import (
	"math"
	"net/http"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/monitoring/report"
	"github.com/mysomeid/sponsor/src/utils/task"

	"github.com/gammazero/deque"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Stores and computes monitor counters
type Monitor struct {
	*task.Task

	Report    report.Report
	collector *Collector

	// Set once any core component stopped on its own
	dead atomic.Bool

	historySize  int
	blockHeights *deque.Deque[uint64]
}

func NewMonitor(config *config.Config) (self *Monitor) {
	self = new(Monitor)

	self.Report = report.Report{
		Run:            &report.RunReport{},
		Sponsor:        &report.SponsorReport{},
		RedisPublisher: &report.RedisPublisherReport{},
	}

	// Initialization
	self.Report.Run.State.StartTimestamp.Store(time.Now().Unix())

	self.historySize = 30
	self.blockHeights = deque.New[uint64](self.historySize)

	self.collector = NewCollector().WithMonitor(self)

	self.Task = task.NewTask(config, "monitor").
		WithPeriodicSubtaskFunc(time.Minute, self.monitorBlocks)
	return
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}

// Measure block processing speed
func (self *Monitor) monitorBlocks() (err error) {
	loaded := self.Report.Sponsor.State.FollowerCurrentHeight.Load()
	if loaded == 0 {
		// Neglect the first 0
		return
	}

	self.blockHeights.PushBack(loaded)
	if self.blockHeights.Len() > self.historySize {
		self.blockHeights.PopFront()
	}
	value := float64(self.blockHeights.Back()-self.blockHeights.Front()) / float64(self.blockHeights.Len())

	self.Report.Sponsor.State.AverageBlocksProcessedPerMinute.Store(round(value))
	return
}

func (self *Monitor) GetReport() *report.Report {
	return &self.Report
}

func (self *Monitor) GetPrometheusCollector() (collector prometheus.Collector) {
	return self.collector
}

// Called by the controller when a core component exits
func (self *Monitor) MarkDead() {
	self.dead.Store(true)
	self.Report.Sponsor.Errors.ComponentsDied.Inc()
}

func (self *Monitor) IsOK() bool {
	return !self.dead.Load()
}

func (self *Monitor) OnGetState(c *gin.Context) {
	self.Report.Run.State.UpForSeconds.Store(uint64(time.Now().Unix() - self.Report.Run.State.StartTimestamp.Load()))

	c.JSON(http.StatusOK, &self.Report)
}

func (self *Monitor) OnGetHealth(c *gin.Context) {
	if self.IsOK() {
		c.Status(http.StatusOK)
	} else {
		c.Status(http.StatusServiceUnavailable)
	}
}
