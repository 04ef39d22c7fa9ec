// pkg/kafka/producer_test.go
package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaganovValera/quote-stream/pkg/backoff"
	"github.com/YaganovValera/quote-stream/pkg/logger"
)

func TestConfigDefaultsAndValidate(t *testing.T) {
	cases := []struct {
		name     string
		input    Config
		wantErr  bool
		wantAcks string
		wantComp string
	}{
		{"empty", Config{}, true, "all", "none"},
		{"noBrokers", Config{Compression: "gzip"}, true, "all", "gzip"},
		{"ok", Config{Brokers: []string{"b1"}}, false, "all", "none"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := c.input
			cfg.applyDefaults()
			assert.Equal(t, c.wantAcks, cfg.RequiredAcks)
			assert.Equal(t, c.wantComp, cfg.Compression)
			assert.Equal(t, c.wantErr, cfg.validate() != nil)
		})
	}
}

func TestBuildSaramaConfig_RequiredAcks(t *testing.T) {
	cases := []struct {
		acks       string
		want       sarama.RequiredAcks
		idempotent bool
		wantErr    bool
	}{
		{"all", sarama.WaitForAll, true, false},
		{"ALL", sarama.WaitForAll, true, false},
		{"leader", sarama.WaitForLocal, false, false},
		{"LeAdEr", sarama.WaitForLocal, false, false},
		{"none", sarama.NoResponse, false, false},
		{"invalid", 0, false, true},
	}
	for _, c := range cases {
		t.Run(c.acks, func(t *testing.T) {
			sc, err := buildSaramaConfig(Config{RequiredAcks: c.acks, Compression: "none", Brokers: []string{"x"}})
			if c.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, sc.Producer.RequiredAcks)
			assert.Equal(t, c.idempotent, sc.Producer.Idempotent)
			assert.NoError(t, sc.Validate())
		})
	}
}

func TestBuildSaramaConfig_Timeout(t *testing.T) {
	sc, err := buildSaramaConfig(Config{RequiredAcks: "leader", Compression: "none"})
	require.NoError(t, err)
	assert.Equal(t, sarama.NewConfig().Producer.Timeout, sc.Producer.Timeout)
	assert.NoError(t, sc.Validate())

	sc, err = buildSaramaConfig(Config{RequiredAcks: "leader", Compression: "none", Timeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, sc.Producer.Timeout)
}

func TestBuildSaramaConfig_Compression(t *testing.T) {
	for _, comp := range []string{"none", "gzip", "snappy", "lz4", "zstd", "NONE"} {
		_, err := buildSaramaConfig(Config{RequiredAcks: "all", Compression: comp})
		assert.NoError(t, err, comp)
	}
	_, err := buildSaramaConfig(Config{RequiredAcks: "all", Compression: "bogus"})
	assert.Error(t, err)
}

func TestPublish_RetryAndSuccess(t *testing.T) {
	mockProd := mocks.NewSyncProducer(t, sarama.NewConfig())

	mockProd.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	mockProd.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != "value" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	kp := &kafkaProducer{
		prod:   mockProd,
		logger: logger.NewNop(),
		backoffCfg: backoff.Config{
			InitialInterval: time.Millisecond, Multiplier: 1,
			MaxInterval: time.Millisecond, MaxElapsedTime: time.Second,
		},
	}
	require.NoError(t, kp.Publish(context.Background(), "quotes", []byte("key"), []byte("value")))
	require.NoError(t, kp.Close())
}

func TestPublish_GivesUp(t *testing.T) {
	mockProd := mocks.NewSyncProducer(t, sarama.NewConfig())
	mockProd.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	mockProd.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	kp := &kafkaProducer{
		prod:       mockProd,
		logger:     logger.NewNop(),
		backoffCfg: backoff.Config{InitialInterval: time.Millisecond, Multiplier: 1, MaxRetries: 1},
	}
	err := kp.Publish(context.Background(), "quotes", nil, []byte("v"))
	var maxErr *backoff.ErrMaxRetries
	require.ErrorAs(t, err, &maxErr)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, kp.Close())
}

func TestNewProducer_InvalidConfig(t *testing.T) {
	_, err := NewProducer(context.Background(), Config{}, logger.NewNop())
	assert.Error(t, err)
}

func TestNewProducer_InvalidAcks(t *testing.T) {
	cfg := Config{Brokers: []string{"dummy"}, RequiredAcks: "invalid", Compression: "none"}
	_, err := NewProducer(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}
