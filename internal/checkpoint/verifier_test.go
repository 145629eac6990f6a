package checkpoint_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/trinsiklabs/recall/internal/audit"
	auditmem "github.com/trinsiklabs/recall/internal/audit/store/memory"
	"github.com/trinsiklabs/recall/internal/checkpoint"
	checkpointmem "github.com/trinsiklabs/recall/internal/checkpoint/store/memory"
	"github.com/trinsiklabs/recall/internal/sequence"
	"github.com/trinsiklabs/recall/pkg/domain"
)

type VerifierSuite struct {
	suite.Suite
	store      *checkpointmem.InMemoryStore
	auditStore *auditmem.InMemoryStore
	issuer     *sequence.InMemoryIssuer
	verifier   *checkpoint.Verifier
	userID     domain.UserID
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.store = checkpointmem.NewInMemoryStore()
	s.auditStore = auditmem.NewInMemoryStore()
	s.issuer = sequence.NewInMemoryIssuer()
	s.userID = domain.NewUserID()

	log := slog.New(slog.DiscardHandler)
	auditSvc, err := audit.NewService(s.auditStore, log, nil)
	s.Require().NoError(err)

	s.verifier, err = checkpoint.NewVerifier(s.store, s.issuer, checkpoint.PrefixClassifier{}, auditSvc, log, nil)
	s.Require().NoError(err)
}

func (s *VerifierSuite) advanceSequence(to int64) {
	ctx := context.Background()
	for i := int64(0); i < to; i++ {
		_, err := s.issuer.Next(ctx)
		s.Require().NoError(err)
	}
}

func (s *VerifierSuite) insert(cp *checkpoint.Checkpoint) {
	now := time.Now().UTC()
	if cp.ID.IsNil() {
		cp.ID = domain.NewCheckpointID()
	}
	cp.UserID = s.userID
	cp.Active = true
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.Require().NoError(s.store.Create(context.Background(), cp))
}

func (s *VerifierSuite) verifyRecords() []*audit.Entry {
	entries, err := s.auditStore.List(context.Background(), audit.Filter{Action: audit.ActionVerify})
	s.Require().NoError(err)
	return entries
}

func (s *VerifierSuite) TestCleanSetReportsNoViolations() {
	s.advanceSequence(10)
	s.insert(&checkpoint.Checkpoint{
		Type:          checkpoint.TypeRollback,
		AfterSequence: 5,
		CreatedBy:     checkpoint.CreatedByHuman,
		AuthorizedBy:  "human:alice",
	})
	s.insert(&checkpoint.Checkpoint{
		Type:          checkpoint.TypeSnapshot,
		AfterSequence: 8,
		CreatedBy:     checkpoint.CreatedBySystem,
	})

	violations, err := s.verifier.Verify(context.Background(), s.userID, "human:auditor")
	s.Require().NoError(err)
	s.NotNil(violations)
	s.Empty(violations)

	records := s.verifyRecords()
	s.Require().Len(records, 1, "every sweep leaves exactly one verify record")
	s.Equal(audit.OutcomeSuccess, records[0].Outcome)
	s.Equal("human:auditor", records[0].Actor)
}

func (s *VerifierSuite) TestEmptySetIsConsistent() {
	violations, err := s.verifier.Verify(context.Background(), s.userID, "human:auditor")
	s.Require().NoError(err)
	s.Empty(violations)
}

func (s *VerifierSuite) TestRollbackWithoutHumanAuthorizer() {
	s.advanceSequence(10)
	s.insert(&checkpoint.Checkpoint{
		Type:          checkpoint.TypeRollback,
		AfterSequence: 5,
		CreatedBy:     checkpoint.CreatedBySystem,
		AuthorizedBy:  "agent:planner",
	})

	violations, err := s.verifier.Verify(context.Background(), s.userID, "human:auditor")
	s.Require().NoError(err)
	s.Require().Len(violations, 1)
	s.Equal(checkpoint.ViolationUnauthorized, violations[0].Kind)

	records := s.verifyRecords()
	s.Require().Len(records, 1)
	s.Equal(audit.OutcomeDenied, records[0].Outcome, "a sweep that finds violations is recorded as denied")
}

func (s *VerifierSuite) TestSequenceBeyondHighWaterMark() {
	s.advanceSequence(3)
	s.insert(&checkpoint.Checkpoint{
		Type:          checkpoint.TypeSnapshot,
		AfterSequence: 50,
		CreatedBy:     checkpoint.CreatedBySystem,
	})

	violations, err := s.verifier.Verify(context.Background(), s.userID, "human:auditor")
	s.Require().NoError(err)
	s.Require().Len(violations, 1)
	s.Equal(checkpoint.ViolationSequenceRange, violations[0].Kind)
}

func (s *VerifierSuite) TestMultipleViolationsAllReported() {
	s.advanceSequence(2)
	s.insert(&checkpoint.Checkpoint{
		Type:          checkpoint.TypeRollback,
		AfterSequence: 1,
		CreatedBy:     checkpoint.CreatedBySystem,
	})
	s.insert(&checkpoint.Checkpoint{
		Type:          checkpoint.TypeRecovery,
		AfterSequence: 99,
		CreatedBy:     checkpoint.CreatedByHuman,
	})

	violations, err := s.verifier.Verify(context.Background(), s.userID, "human:auditor")
	s.Require().NoError(err)
	s.Len(violations, 2)
}

func (s *VerifierSuite) TestClassifierOutageFailsSweep() {
	s.advanceSequence(10)
	s.insert(&checkpoint.Checkpoint{
		Type:          checkpoint.TypeRollback,
		AfterSequence: 5,
		CreatedBy:     checkpoint.CreatedByHuman,
		AuthorizedBy:  "human:alice",
	})

	log := slog.New(slog.DiscardHandler)
	auditSvc, err := audit.NewService(s.auditStore, log, nil)
	s.Require().NoError(err)

	down := checkpoint.ClassifierFunc(func(context.Context, string) (bool, error) {
		return false, errors.New("directory unavailable")
	})
	v, err := checkpoint.NewVerifier(s.store, s.issuer, down, auditSvc, log, nil)
	s.Require().NoError(err)

	_, err = v.Verify(context.Background(), s.userID, "human:auditor")
	s.Error(err, "an unanswerable authorization question must fail the sweep")
	s.Empty(s.verifyRecords(), "an aborted sweep reports nothing")
}

// refusingAuditor simulates an audit store outage during the sweep.
type refusingAuditor struct{}

func (refusingAuditor) Record(context.Context, audit.Record) (domain.AuditID, error) {
	return domain.AuditID{}, errors.New("audit store unavailable")
}

func (s *VerifierSuite) TestAuditFailureFailsSweep() {
	v, err := checkpoint.NewVerifier(s.store, s.issuer, checkpoint.PrefixClassifier{}, refusingAuditor{}, slog.New(slog.DiscardHandler), nil)
	s.Require().NoError(err)

	_, err = v.Verify(context.Background(), s.userID, "human:auditor")
	s.Error(err, "an unrecordable sweep must not report results")
}
