package publisher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding"
	"errors"
	"fmt"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/monitoring"
	"github.com/mysomeid/sponsor/src/utils/task"

	"github.com/redis/go-redis/v9"
)

// Forwards messages to a Redis pub/sub channel, in order
type RedisPublisher[In encoding.BinaryMarshaler] struct {
	*task.Task

	redisConfig config.Redis

	monitor monitoring.Monitor

	client      *redis.Client
	channelName string
	input       chan In
}

func NewRedisPublisher[In encoding.BinaryMarshaler](config *config.Config, name string) (self *RedisPublisher[In]) {
	self = new(RedisPublisher[In])

	self.redisConfig = config.Redis
	self.channelName = config.Redis.ChannelName

	self.Task = task.NewTask(config, name).
		WithSubtaskFunc(self.run).
		WithOnBeforeStart(self.connect).
		WithOnAfterStop(self.disconnect)

	return
}

func (self *RedisPublisher[In]) WithInputChannel(v chan In) *RedisPublisher[In] {
	self.input = v
	return self
}

func (self *RedisPublisher[In]) WithChannelName(v string) *RedisPublisher[In] {
	self.channelName = v
	return self
}

func (self *RedisPublisher[In]) WithMonitor(monitor monitoring.Monitor) *RedisPublisher[In] {
	self.monitor = monitor
	return self
}

// Used instead of connecting in tests
func (self *RedisPublisher[In]) WithClient(client *redis.Client) *RedisPublisher[In] {
	self.client = client
	return self
}

// Never blocks, a full queue drops the message
func (self *RedisPublisher[In]) Offer(payload In) bool {
	select {
	case self.input <- payload:
		return true
	default:
		self.monitor.GetReport().RedisPublisher.Errors.Dropped.Inc()
		return false
	}
}

func (self *RedisPublisher[In]) disconnect() {
	err := self.client.Close()
	if err != nil {
		self.Log.WithError(err).Error("Failed to close connection")
	}
}

func (self *RedisPublisher[In]) connect() (err error) {
	if self.client != nil {
		return
	}

	opts := redis.Options{
		ClientName:      fmt.Sprintf("sponsor/%s", self.Name),
		Addr:            fmt.Sprintf("%s:%d", self.redisConfig.Host, self.redisConfig.Port),
		Password:        self.redisConfig.Password,
		Username:        self.redisConfig.User,
		DB:              self.redisConfig.DB,
		MinIdleConns:    self.redisConfig.MinIdleConns,
		MaxIdleConns:    self.redisConfig.MaxIdleConns,
		ConnMaxIdleTime: self.redisConfig.ConnMaxIdleTime,
		PoolSize:        self.redisConfig.MaxOpenConns,
		ConnMaxLifetime: self.redisConfig.ConnMaxLifetime,
	}

	if self.redisConfig.ClientCert != "" && self.redisConfig.ClientKey != "" && self.redisConfig.CaCert != "" {
		cert, err := tls.X509KeyPair([]byte(self.redisConfig.ClientCert), []byte(self.redisConfig.ClientKey))
		if err != nil {
			self.Log.WithError(err).Error("Failed to load client cert")
			return err
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM([]byte(self.redisConfig.CaCert)) {
			return errors.New("failed to append CA cert to pool")
		}

		opts.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			RootCAs:      caCertPool,
			Certificates: []tls.Certificate{cert},
		}
	}

	self.client = redis.NewClient(&opts)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = self.client.Ping(ctx).Err()
	if err != nil {
		self.Log.WithError(err).Error("Failed to ping Redis")
		return
	}

	return
}

// Exits once the input channel is closed and everything got published
func (self *RedisPublisher[In]) run() error {
	for payload := range self.input {
		self.publish(payload)
	}
	return nil
}

func (self *RedisPublisher[In]) publish(payload In) {
	err := task.NewRetry().
		WithContext(self.Ctx).
		WithMaxElapsedTime(self.redisConfig.MaxElapsedTime).
		WithMaxInterval(self.redisConfig.MaxInterval).
		WithOnError(func(err error) error {
			self.Log.WithError(err).Warn("Failed to publish message, retrying")
			self.monitor.GetReport().RedisPublisher.Errors.Publish.Inc()
			return err
		}).
		Run(func() error {
			return self.client.Publish(self.Ctx, self.channelName, payload).Err()
		})
	if err != nil {
		self.Log.WithError(err).Error("Failed to publish message, giving up")
		self.monitor.GetReport().RedisPublisher.Errors.PersistentFailure.Inc()
		return
	}

	self.monitor.GetReport().RedisPublisher.State.MessagesPublished.Inc()
	self.monitor.GetReport().RedisPublisher.State.LastSuccessfulMessageTimestamp.Store(time.Now().Unix())
}
