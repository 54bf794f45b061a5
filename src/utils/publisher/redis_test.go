package publisher

import (
	"encoding/json"
	"testing"

	"github.com/mysomeid/sponsor/src/utils/config"
	monitor_sponsor "github.com/mysomeid/sponsor/src/utils/monitoring/sponsor"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type message struct {
	Value int
}

func (self *message) MarshalBinary() ([]byte, error) {
	return json.Marshal(self)
}

type RedisPublisherTestSuite struct {
	suite.Suite
	monitor *monitor_sponsor.Monitor
}

func TestRedisPublisherTestSuite(t *testing.T) {
	suite.Run(t, new(RedisPublisherTestSuite))
}

func (s *RedisPublisherTestSuite) SetupTest() {
	s.monitor = monitor_sponsor.NewMonitor(config.Default())
}

func (s *RedisPublisherTestSuite) TestOfferDropsWhenFull() {
	input := make(chan *message, 1)
	publisher := NewRedisPublisher[*message](config.Default(), "publisher").
		WithInputChannel(input).
		WithMonitor(s.monitor)

	require.True(s.T(), publisher.Offer(&message{Value: 1}))
	require.False(s.T(), publisher.Offer(&message{Value: 2}))

	require.Equal(s.T(), uint64(1), s.monitor.GetReport().RedisPublisher.Errors.Dropped.Load())
	require.Equal(s.T(), 1, (<-input).Value)
}

func (s *RedisPublisherTestSuite) TestDefaultChannelName() {
	publisher := NewRedisPublisher[*message](config.Default(), "publisher")
	require.Equal(s.T(), "sponsor.events", publisher.channelName)
}
