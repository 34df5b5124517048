package metrics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/kilianp07/antsid/core/metrics"
)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	Retain      bool   `json:"retain"`
	TimeoutMS   int    `json:"timeout_ms"`
}

type mqttClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) mqttClient {
	return paho.NewClient(opts)
}

// MQTTSink publishes fitted parameter sets as JSON documents.
// Member fits go to <prefix>/<run_id>/<member>, run summaries to
// <prefix>/<run_id>/summary.
type MQTTSink struct {
	cli     mqttClient
	prefix  string
	qos     byte
	retain  bool
	timeout time.Duration
}

type mqttFit struct {
	RunID       string    `json:"run_id"`
	Member      string    `json:"member"`
	SIDSens     float64   `json:"sid_sens"`
	FastRate    float64   `json:"fast_rate"`
	Temp0       float64   `json:"temp0"`
	TempThresh  float64   `json:"temp_thresh"`
	Objective   float64   `json:"objective"`
	Evaluations int       `json:"evaluations"`
	Iterations  int       `json:"iterations"`
	Status      string    `json:"status"`
	DurationMS  int64     `json:"duration_ms"`
	Time        time.Time `json:"time"`
}

type mqttFailure struct {
	RunID  string    `json:"run_id"`
	Member string    `json:"member"`
	Error  string    `json:"error"`
	Time   time.Time `json:"time"`
}

type mqttRun struct {
	RunID      string    `json:"run_id"`
	Fitted     int       `json:"fitted"`
	Failed     int       `json:"failed"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// NewMQTTSink connects to the broker described by cfg.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt sink: broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "antsid"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "antsid/fits"
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectTimeout(timeout)
	c := newMQTTClient(opts)
	if token := c.Connect(); !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt sink: connect timeout")
	} else if token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTSink{
		cli:     c,
		prefix:  strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:     cfg.QoS,
		retain:  cfg.Retain,
		timeout: timeout,
	}, nil
}

func (s *MQTTSink) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := s.cli.Publish(topic, s.qos, s.retain, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("mqtt sink: publish timeout on %s", topic)
	}
	return token.Error()
}

// RecordFit publishes one fitted member.
func (s *MQTTSink) RecordFit(rec coremetrics.FitRecord) error {
	return s.publish(fmt.Sprintf("%s/%s/%s", s.prefix, rec.RunID, rec.Member), mqttFit{
		RunID:       rec.RunID,
		Member:      rec.Member,
		SIDSens:     rec.Params.SIDSens,
		FastRate:    rec.Params.FastRate,
		Temp0:       rec.Params.Temp0,
		TempThresh:  rec.Params.TempThresh,
		Objective:   rec.Objective,
		Evaluations: rec.Evaluations,
		Iterations:  rec.Iterations,
		Status:      rec.Status,
		DurationMS:  rec.Duration.Milliseconds(),
		Time:        rec.Time,
	})
}

// RecordFailure publishes a failed member on the member topic.
func (s *MQTTSink) RecordFailure(rec coremetrics.FailureRecord) error {
	return s.publish(fmt.Sprintf("%s/%s/%s", s.prefix, rec.RunID, rec.Member), mqttFailure(rec))
}

// RecordRun publishes the run summary.
func (s *MQTTSink) RecordRun(rec coremetrics.RunRecord) error {
	return s.publish(fmt.Sprintf("%s/%s/summary", s.prefix, rec.RunID), mqttRun{
		RunID:      rec.RunID,
		Fitted:     rec.Fitted,
		Failed:     rec.Failed,
		DurationMS: rec.Duration.Milliseconds(),
		Error:      rec.Error,
		Time:       rec.Time,
	})
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.cli.Disconnect(250)
	return nil
}
