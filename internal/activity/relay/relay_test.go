package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
)

// memorySource mimics the outbox claim: rows stay pending unless publish
// succeeds.
type memorySource struct {
	mu        sync.Mutex
	pending   []Record
	published []Record
	claimErr  error
}

func (m *memorySource) add(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	policyID := id.NewPolicyID()
	for range n {
		seq := int64(len(m.pending) + len(m.published) + 1)
		m.pending = append(m.pending, Record{
			Seq: seq,
			Activity: models.NewActivity(policyID, models.ActionPolicyCreated, "Policy created",
				nil, models.SystemPerformer, time.Now()),
		})
	}
}

func (m *memorySource) ClaimBatch(ctx context.Context, limit int, publish func(context.Context, []Record) error) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return 0, m.claimErr
	}
	n := min(limit, len(m.pending))
	if n == 0 {
		return 0, nil
	}
	batch := append([]Record(nil), m.pending[:n]...)
	if err := publish(ctx, batch); err != nil {
		return 0, err
	}
	m.published = append(m.published, batch...)
	m.pending = m.pending[n:]
	return n, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]Record
	fail    error
}

func (p *recordingPublisher) Publish(_ context.Context, batch []Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.batches = append(p.batches, batch)
	return nil
}

func (p *recordingPublisher) batchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

// =============================================================================
// Relay Test Suite
// =============================================================================

type RelaySuite struct {
	suite.Suite
	source    *memorySource
	publisher *recordingPublisher
	metrics   *Metrics
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.source = &memorySource{}
	s.publisher = &recordingPublisher{}
	s.metrics = NewMetricsWithRegisterer(prometheus.NewRegistry())
}

func (s *RelaySuite) relay(opts ...Option) *Relay {
	base := []Option{WithBatchSize(3), WithMetrics(s.metrics)}
	return New(s.source, s.publisher, 10*time.Millisecond, append(base, opts...)...)
}

func (s *RelaySuite) TestRelayOnce() {
	s.Run("publishes one batch in outbox order", func() {
		s.SetupTest()
		s.source.add(5)

		n, err := s.relay().RelayOnce(context.Background())
		s.Require().NoError(err)
		s.Equal(3, n)
		s.Require().Len(s.publisher.batches, 1)
		for i, rec := range s.publisher.batches[0] {
			s.Equal(int64(i+1), rec.Seq)
		}
		s.Len(s.source.pending, 2)
		s.Equal(3.0, testutil.ToFloat64(s.metrics.Published))
	})

	s.Run("publish failure leaves rows pending", func() {
		s.SetupTest()
		s.source.add(2)
		s.publisher.fail = errors.New("broker unavailable")

		n, err := s.relay().RelayOnce(context.Background())
		s.Error(err)
		s.Zero(n)
		s.Len(s.source.pending, 2)
		s.Empty(s.source.published)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.BatchFailures))
	})

	s.Run("empty outbox is a noop", func() {
		s.SetupTest()
		n, err := s.relay().RelayOnce(context.Background())
		s.Require().NoError(err)
		s.Zero(n)
		s.Zero(s.publisher.batchCount())
	})
}

func (s *RelaySuite) TestDrain() {
	s.Run("stops at the first short batch", func() {
		s.SetupTest()
		s.source.add(7)

		n, err := s.relay().Drain(context.Background())
		s.Require().NoError(err)
		s.Equal(7, n)
		s.Equal(3, s.publisher.batchCount())
		s.Empty(s.source.pending)
	})

	s.Run("claim error stops the drain", func() {
		s.SetupTest()
		s.source.claimErr = errors.New("connection reset")

		_, err := s.relay().Drain(context.Background())
		s.Error(err)
	})
}

func (s *RelaySuite) TestRun() {
	s.source.add(4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.relay().Run(ctx) }()

	s.Eventually(func() bool {
		s.source.mu.Lock()
		defer s.source.mu.Unlock()
		return len(s.source.pending) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		s.Fail("relay did not stop")
	}

	s.Error(New(s.source, s.publisher, 0).Run(context.Background()))
}
