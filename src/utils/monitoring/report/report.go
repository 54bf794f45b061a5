package report

type Report struct {
	Run            *RunReport            `json:"run,omitempty"`
	Sponsor        *SponsorReport        `json:"sponsor,omitempty"`
	RedisPublisher *RedisPublisherReport `json:"redis_publisher,omitempty"`
}
