package checkpoint_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/trinsiklabs/recall/internal/audit"
	auditmem "github.com/trinsiklabs/recall/internal/audit/store/memory"
	"github.com/trinsiklabs/recall/internal/checkpoint"
	checkpointmem "github.com/trinsiklabs/recall/internal/checkpoint/store/memory"
	"github.com/trinsiklabs/recall/pkg/domain"
	"github.com/trinsiklabs/recall/pkg/domainerr"
)

type CheckpointServiceSuite struct {
	suite.Suite
	store      *checkpointmem.InMemoryStore
	auditStore *auditmem.InMemoryStore
	auditSvc   *audit.Service
	service    *checkpoint.Service
	userID     domain.UserID
}

func TestCheckpointServiceSuite(t *testing.T) {
	suite.Run(t, new(CheckpointServiceSuite))
}

func (s *CheckpointServiceSuite) SetupTest() {
	s.store = checkpointmem.NewInMemoryStore()
	s.auditStore = auditmem.NewInMemoryStore()
	s.userID = domain.NewUserID()

	log := slog.New(slog.DiscardHandler)

	var err error
	s.auditSvc, err = audit.NewService(s.auditStore, log, nil)
	s.Require().NoError(err)

	s.service, err = checkpoint.NewService(
		s.store,
		s.auditSvc,
		checkpoint.NopTxRunner(),
		checkpoint.NewGate(checkpoint.PrefixClassifier{}),
		log,
	)
	s.Require().NoError(err)
}

func (s *CheckpointServiceSuite) auditEntries() []*audit.Entry {
	entries, err := s.auditStore.List(context.Background(), audit.Filter{})
	s.Require().NoError(err)
	return entries
}

func (s *CheckpointServiceSuite) TestCreateRollbackRequiresHumanAuthorizer() {
	ctx := context.Background()

	s.Run("system-created with no authorizer is denied", func() {
		_, err := s.service.Create(ctx, checkpoint.CreateRequest{
			UserID:        s.userID,
			Type:          checkpoint.TypeRollback,
			AfterSequence: 5,
			CreatedBy:     checkpoint.CreatedBySystem,
			Actor:         "agent:planner",
		})
		s.Error(err)
		s.True(domainerr.Is(err, domainerr.CodeUnauthorized))

		// The denied audit record is the only persisted trace.
		checkpoints, listErr := s.store.ListByUser(ctx, s.userID)
		s.NoError(listErr)
		s.Empty(checkpoints, "no checkpoint row may exist for a denied attempt")

		entries := s.auditEntries()
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionAttemptedEdit, entries[0].Action)
		s.Equal(audit.OutcomeDenied, entries[0].Outcome)
	})

	s.Run("agent authorizer is denied regardless of created_by", func() {
		_, err := s.service.Create(ctx, checkpoint.CreateRequest{
			UserID:        s.userID,
			Type:          checkpoint.TypeRollback,
			AfterSequence: 5,
			CreatedBy:     checkpoint.CreatedByHuman,
			AuthorizedBy:  "agent:planner",
			Actor:         "agent:planner",
		})
		s.Error(err)
		s.True(domainerr.Is(err, domainerr.CodeUnauthorized))
	})

	s.Run("human authorizer succeeds even when system-created", func() {
		cp, err := s.service.Create(ctx, checkpoint.CreateRequest{
			UserID:        s.userID,
			Type:          checkpoint.TypeRollback,
			AfterSequence: 5,
			CreatedBy:     checkpoint.CreatedBySystem,
			AuthorizedBy:  "human:alice",
			Reason:        "undo after bad session",
			Actor:         "human:alice",
		})
		s.Require().NoError(err)
		s.True(cp.Active)
		s.Equal(int64(5), cp.AfterSequence)
		s.Equal("human:alice", cp.AuthorizedBy)
	})
}

func (s *CheckpointServiceSuite) TestCreateValidation() {
	ctx := context.Background()

	s.Run("unknown checkpoint type", func() {
		_, err := s.service.Create(ctx, checkpoint.CreateRequest{
			UserID:        s.userID,
			Type:          "wormhole",
			AfterSequence: 1,
			CreatedBy:     checkpoint.CreatedByHuman,
			Actor:         "human:alice",
		})
		s.Error(err)
		s.True(domainerr.Is(err, domainerr.CodeValidation))
	})

	s.Run("unknown created_by", func() {
		_, err := s.service.Create(ctx, checkpoint.CreateRequest{
			UserID:        s.userID,
			Type:          checkpoint.TypeSnapshot,
			AfterSequence: 1,
			CreatedBy:     "robot",
			Actor:         "human:alice",
		})
		s.Error(err)
		s.True(domainerr.Is(err, domainerr.CodeValidation))
	})

	s.Run("negative after_sequence", func() {
		_, err := s.service.Create(ctx, checkpoint.CreateRequest{
			UserID:        s.userID,
			Type:          checkpoint.TypeSnapshot,
			AfterSequence: -1,
			CreatedBy:     checkpoint.CreatedByHuman,
			Actor:         "human:alice",
		})
		s.Error(err)
		s.True(domainerr.Is(err, domainerr.CodeValidation))
	})

	s.Run("denied attempts are audited", func() {
		entries := s.auditEntries()
		s.Require().NotEmpty(entries)
		for _, e := range entries {
			s.Equal(audit.OutcomeDenied, e.Outcome)
		}
	})
}

func (s *CheckpointServiceSuite) TestCreateFuturePositionIsLegal() {
	// A checkpoint past the current maximum simply filters nothing yet.
	cp, err := s.service.Create(context.Background(), checkpoint.CreateRequest{
		UserID:        s.userID,
		Type:          checkpoint.TypeRollback,
		AfterSequence: 1_000_000,
		CreatedBy:     checkpoint.CreatedByHuman,
		AuthorizedBy:  "human:alice",
		Actor:         "human:alice",
	})
	s.Require().NoError(err)
	s.Equal(int64(1_000_000), cp.AfterSequence)
}

func (s *CheckpointServiceSuite) TestCreateIsAudited() {
	ctx := context.Background()

	cp, err := s.service.Create(ctx, checkpoint.CreateRequest{
		UserID:        s.userID,
		Type:          checkpoint.TypeSnapshot,
		AfterSequence: 7,
		CreatedBy:     checkpoint.CreatedBySystem,
		Actor:         "agent:planner",
	})
	s.Require().NoError(err)

	entries := s.auditEntries()
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionCreate, entries[0].Action)
	s.Equal(audit.OutcomeSuccess, entries[0].Outcome)
	s.Equal(cp.ID.String(), entries[0].Details["checkpoint_id"])
	s.Equal("checkpoint_create", entries[0].Details["operation"])
}

func (s *CheckpointServiceSuite) TestDeactivateIsIdempotent() {
	ctx := context.Background()

	cp, err := s.service.Create(ctx, checkpoint.CreateRequest{
		UserID:        s.userID,
		Type:          checkpoint.TypeRollback,
		AfterSequence: 3,
		CreatedBy:     checkpoint.CreatedByHuman,
		AuthorizedBy:  "human:alice",
		Actor:         "human:alice",
	})
	s.Require().NoError(err)

	first, err := s.service.Deactivate(ctx, cp.ID, "human:alice")
	s.Require().NoError(err)
	s.False(first.Active)
	s.Require().NotNil(first.DeactivatedAt)

	// Second call is a safe no-op with the same end state.
	second, err := s.service.Deactivate(ctx, cp.ID, "human:alice")
	s.Require().NoError(err)
	s.False(second.Active)
	s.Require().NotNil(second.DeactivatedAt)
	s.Equal(*first.DeactivatedAt, *second.DeactivatedAt, "deactivated_at is set exactly once")
}

func (s *CheckpointServiceSuite) TestDeactivateUnknownID() {
	_, err := s.service.Deactivate(context.Background(), domain.NewCheckpointID(), "human:alice")
	s.Error(err)
	s.True(domainerr.Is(err, domainerr.CodeNotFound))
}

func (s *CheckpointServiceSuite) TestListNewestFirst() {
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		_, err := s.service.Create(ctx, checkpoint.CreateRequest{
			UserID:        s.userID,
			Type:          checkpoint.TypeSnapshot,
			AfterSequence: i,
			CreatedBy:     checkpoint.CreatedBySystem,
			Actor:         "agent:planner",
		})
		s.Require().NoError(err)
	}

	checkpoints, err := s.service.List(ctx, s.userID)
	s.Require().NoError(err)
	s.Len(checkpoints, 3)
}
