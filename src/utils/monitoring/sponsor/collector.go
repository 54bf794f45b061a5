package monitor_sponsor

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	monitor *Monitor

	// Run
	UpForSeconds *prometheus.Desc

	// Errors
	FollowerFailures        *prometheus.Desc
	SenderSubmitFailures    *prometheus.Desc
	WriterOperationFailures *prometheus.Desc
	WriterReconnectFailures *prometheus.Desc
	WriterUnacknowledged    *prometheus.Desc
	MinterBusy              *prometheus.Desc
	MinterTooManyRequests   *prometheus.Desc
	MinterInternal          *prometheus.Desc
	AuditorFailures         *prometheus.Desc
	ComponentsDied          *prometheus.Desc

	// State
	FollowerCurrentHeight            *prometheus.Desc
	FollowerBlocksProcessed          *prometheus.Desc
	FollowerEventsFound              *prometheus.Desc
	FollowerOwnTransactionsSeen      *prometheus.Desc
	FollowerRetryAttempt             *prometheus.Desc
	AverageBlocksProcessedPerMinute  *prometheus.Desc
	SenderNextNonce                  *prometheus.Desc
	SenderBufferedTransactions       *prometheus.Desc
	SenderTransactionsSubmitted      *prometheus.Desc
	WriterCheckpointHeight           *prometheus.Desc
	WriterBlocksInserted             *prometheus.Desc
	WriterEventsInserted             *prometheus.Desc
	WriterTransactionsInserted       *prometheus.Desc
	WriterTransactionsMarked         *prometheus.Desc
	WriterReconnects                 *prometheus.Desc
	MinterRequests                   *prometheus.Desc
	MinterAccepted                   *prometheus.Desc
	AuditorTransactionsMarkedMissing *prometheus.Desc

	// Redis publisher
	RedisPublisherPublishErrors      *prometheus.Desc
	RedisPublisherPersistentFailures *prometheus.Desc
	RedisPublisherDropped            *prometheus.Desc
	RedisPublisherMessagesPublished  *prometheus.Desc
}

func NewCollector() *Collector {
	return &Collector{
		UpForSeconds: prometheus.NewDesc("up_for_seconds", "", nil, nil),

		// Errors
		FollowerFailures:        prometheus.NewDesc("follower_failures", "", nil, nil),
		SenderSubmitFailures:    prometheus.NewDesc("sender_submit_failures", "", nil, nil),
		WriterOperationFailures: prometheus.NewDesc("writer_operation_failures", "", nil, nil),
		WriterReconnectFailures: prometheus.NewDesc("writer_reconnect_failures", "", nil, nil),
		WriterUnacknowledged:    prometheus.NewDesc("writer_unacknowledged", "", nil, nil),
		MinterBusy:              prometheus.NewDesc("minter_busy", "", nil, nil),
		MinterTooManyRequests:   prometheus.NewDesc("minter_too_many_requests", "", nil, nil),
		MinterInternal:          prometheus.NewDesc("minter_internal", "", nil, nil),
		AuditorFailures:         prometheus.NewDesc("auditor_failures", "", nil, nil),
		ComponentsDied:          prometheus.NewDesc("components_died", "", nil, nil),

		// State
		FollowerCurrentHeight:            prometheus.NewDesc("follower_current_height", "", nil, nil),
		FollowerBlocksProcessed:          prometheus.NewDesc("follower_blocks_processed", "", nil, nil),
		FollowerEventsFound:              prometheus.NewDesc("follower_events_found", "", nil, nil),
		FollowerOwnTransactionsSeen:      prometheus.NewDesc("follower_own_transactions_seen", "", nil, nil),
		FollowerRetryAttempt:             prometheus.NewDesc("follower_retry_attempt", "", nil, nil),
		AverageBlocksProcessedPerMinute:  prometheus.NewDesc("average_blocks_processed_per_minute", "", nil, nil),
		SenderNextNonce:                  prometheus.NewDesc("sender_next_nonce", "", nil, nil),
		SenderBufferedTransactions:       prometheus.NewDesc("sender_buffered_transactions", "", nil, nil),
		SenderTransactionsSubmitted:      prometheus.NewDesc("sender_transactions_submitted", "", nil, nil),
		WriterCheckpointHeight:           prometheus.NewDesc("writer_checkpoint_height", "", nil, nil),
		WriterBlocksInserted:             prometheus.NewDesc("writer_blocks_inserted", "", nil, nil),
		WriterEventsInserted:             prometheus.NewDesc("writer_events_inserted", "", nil, nil),
		WriterTransactionsInserted:       prometheus.NewDesc("writer_transactions_inserted", "", nil, nil),
		WriterTransactionsMarked:         prometheus.NewDesc("writer_transactions_marked", "", nil, nil),
		WriterReconnects:                 prometheus.NewDesc("writer_reconnects", "", nil, nil),
		MinterRequests:                   prometheus.NewDesc("minter_requests", "", nil, nil),
		MinterAccepted:                   prometheus.NewDesc("minter_accepted", "", nil, nil),
		AuditorTransactionsMarkedMissing: prometheus.NewDesc("auditor_transactions_marked_missing", "", nil, nil),

		// Redis publisher
		RedisPublisherPublishErrors:      prometheus.NewDesc("redis_publisher_publish_errors", "", nil, nil),
		RedisPublisherPersistentFailures: prometheus.NewDesc("redis_publisher_persistent_failures", "", nil, nil),
		RedisPublisherDropped:            prometheus.NewDesc("redis_publisher_dropped", "", nil, nil),
		RedisPublisherMessagesPublished:  prometheus.NewDesc("redis_publisher_messages_published", "", nil, nil),
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	// Run
	ch <- self.UpForSeconds

	// Errors
	ch <- self.FollowerFailures
	ch <- self.SenderSubmitFailures
	ch <- self.WriterOperationFailures
	ch <- self.WriterReconnectFailures
	ch <- self.WriterUnacknowledged
	ch <- self.MinterBusy
	ch <- self.MinterTooManyRequests
	ch <- self.MinterInternal
	ch <- self.AuditorFailures
	ch <- self.ComponentsDied

	// State
	ch <- self.FollowerCurrentHeight
	ch <- self.FollowerBlocksProcessed
	ch <- self.FollowerEventsFound
	ch <- self.FollowerOwnTransactionsSeen
	ch <- self.FollowerRetryAttempt
	ch <- self.AverageBlocksProcessedPerMinute
	ch <- self.SenderNextNonce
	ch <- self.SenderBufferedTransactions
	ch <- self.SenderTransactionsSubmitted
	ch <- self.WriterCheckpointHeight
	ch <- self.WriterBlocksInserted
	ch <- self.WriterEventsInserted
	ch <- self.WriterTransactionsInserted
	ch <- self.WriterTransactionsMarked
	ch <- self.WriterReconnects
	ch <- self.MinterRequests
	ch <- self.MinterAccepted
	ch <- self.AuditorTransactionsMarkedMissing

	// Redis publisher
	ch <- self.RedisPublisherPublishErrors
	ch <- self.RedisPublisherPersistentFailures
	ch <- self.RedisPublisherDropped
	ch <- self.RedisPublisherMessagesPublished
}

// Collect implements required collect function for all promehteus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	// Run
	ch <- prometheus.MustNewConstMetric(self.UpForSeconds, prometheus.GaugeValue, float64(self.monitor.Report.Run.State.UpForSeconds.Load()))

	// Errors
	ch <- prometheus.MustNewConstMetric(self.FollowerFailures, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.Errors.FollowerFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.SenderSubmitFailures, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.Errors.SenderSubmitFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.WriterOperationFailures, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.Errors.WriterOperationFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.WriterReconnectFailures, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.Errors.WriterReconnectFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.WriterUnacknowledged, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.Errors.WriterUnacknowledged.Load()))
	ch <- prometheus.MustNewConstMetric(self.MinterBusy, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.Errors.MinterBusy.Load()))
	ch <- prometheus.MustNewConstMetric(self.MinterTooManyRequests, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.Errors.MinterTooManyRequests.Load()))
	ch <- prometheus.MustNewConstMetric(self.MinterInternal, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.Errors.MinterInternal.Load()))
	ch <- prometheus.MustNewConstMetric(self.AuditorFailures, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.Errors.AuditorFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.ComponentsDied, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.Errors.ComponentsDied.Load()))

	// State
	ch <- prometheus.MustNewConstMetric(self.FollowerCurrentHeight, prometheus.GaugeValue, float64(self.monitor.Report.Sponsor.State.FollowerCurrentHeight.Load()))
	ch <- prometheus.MustNewConstMetric(self.FollowerBlocksProcessed, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.FollowerBlocksProcessed.Load()))
	ch <- prometheus.MustNewConstMetric(self.FollowerEventsFound, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.FollowerEventsFound.Load()))
	ch <- prometheus.MustNewConstMetric(self.FollowerOwnTransactionsSeen, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.FollowerOwnTransactionsSeen.Load()))
	ch <- prometheus.MustNewConstMetric(self.FollowerRetryAttempt, prometheus.GaugeValue, float64(self.monitor.Report.Sponsor.State.FollowerRetryAttempt.Load()))
	ch <- prometheus.MustNewConstMetric(self.AverageBlocksProcessedPerMinute, prometheus.GaugeValue, float64(self.monitor.Report.Sponsor.State.AverageBlocksProcessedPerMinute.Load()))
	ch <- prometheus.MustNewConstMetric(self.SenderNextNonce, prometheus.GaugeValue, float64(self.monitor.Report.Sponsor.State.SenderNextNonce.Load()))
	ch <- prometheus.MustNewConstMetric(self.SenderBufferedTransactions, prometheus.GaugeValue, float64(self.monitor.Report.Sponsor.State.SenderBufferedTransactions.Load()))
	ch <- prometheus.MustNewConstMetric(self.SenderTransactionsSubmitted, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.SenderTransactionsSubmitted.Load()))
	ch <- prometheus.MustNewConstMetric(self.WriterCheckpointHeight, prometheus.GaugeValue, float64(self.monitor.Report.Sponsor.State.WriterCheckpointHeight.Load()))
	ch <- prometheus.MustNewConstMetric(self.WriterBlocksInserted, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.WriterBlocksInserted.Load()))
	ch <- prometheus.MustNewConstMetric(self.WriterEventsInserted, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.WriterEventsInserted.Load()))
	ch <- prometheus.MustNewConstMetric(self.WriterTransactionsInserted, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.WriterTransactionsInserted.Load()))
	ch <- prometheus.MustNewConstMetric(self.WriterTransactionsMarked, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.WriterTransactionsMarked.Load()))
	ch <- prometheus.MustNewConstMetric(self.WriterReconnects, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.WriterReconnects.Load()))
	ch <- prometheus.MustNewConstMetric(self.MinterRequests, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.MinterRequests.Load()))
	ch <- prometheus.MustNewConstMetric(self.MinterAccepted, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.MinterAccepted.Load()))
	ch <- prometheus.MustNewConstMetric(self.AuditorTransactionsMarkedMissing, prometheus.CounterValue, float64(self.monitor.Report.Sponsor.State.AuditorTransactionsMarkedMissing.Load()))

	// Redis publisher
	ch <- prometheus.MustNewConstMetric(self.RedisPublisherPublishErrors, prometheus.CounterValue, float64(self.monitor.Report.RedisPublisher.Errors.Publish.Load()))
	ch <- prometheus.MustNewConstMetric(self.RedisPublisherPersistentFailures, prometheus.CounterValue, float64(self.monitor.Report.RedisPublisher.Errors.PersistentFailure.Load()))
	ch <- prometheus.MustNewConstMetric(self.RedisPublisherDropped, prometheus.CounterValue, float64(self.monitor.Report.RedisPublisher.Errors.Dropped.Load()))
	ch <- prometheus.MustNewConstMetric(self.RedisPublisherMessagesPublished, prometheus.CounterValue, float64(self.monitor.Report.RedisPublisher.State.MessagesPublished.Load()))
}
