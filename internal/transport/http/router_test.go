package httptransport_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/trinsiklabs/recall/internal/audit"
	auditmem "github.com/trinsiklabs/recall/internal/audit/store/memory"
	"github.com/trinsiklabs/recall/internal/checkpoint"
	checkpointmem "github.com/trinsiklabs/recall/internal/checkpoint/store/memory"
	"github.com/trinsiklabs/recall/internal/jwttoken"
	"github.com/trinsiklabs/recall/internal/sequence"
	httptransport "github.com/trinsiklabs/recall/internal/transport/http"
)

const testSigningKey = "router-test-signing-key"

type RouterSuite struct {
	suite.Suite
	server *httptest.Server
	tokens *jwttoken.Service
	userID uuid.UUID
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	log := slog.New(slog.DiscardHandler)
	s.tokens = jwttoken.NewService(testSigningKey, "recall")
	s.userID = uuid.New()

	auditSvc, err := audit.NewService(auditmem.NewInMemoryStore(), log, nil)
	s.Require().NoError(err)

	cpStore := checkpointmem.NewInMemoryStore()
	resolver := checkpoint.NewResolver(cpStore, nil, 0, log, nil)

	cpSvc, err := checkpoint.NewService(cpStore, auditSvc, checkpoint.NopTxRunner(), checkpoint.NewGate(checkpoint.PrefixClassifier{}), log,
		checkpoint.WithResolver(resolver),
	)
	s.Require().NoError(err)

	seq := sequence.NewInMemoryIssuer()
	verifier, err := checkpoint.NewVerifier(cpStore, seq, checkpoint.PrefixClassifier{}, auditSvc, log, nil)
	s.Require().NoError(err)

	handler := httptransport.NewHandler(log, auditSvc, cpSvc, resolver, verifier, seq)
	router := httptransport.NewRouter(handler, jwttoken.NewMiddlewareAdapter(s.tokens), nil)
	s.server = httptest.NewServer(router)
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

func (s *RouterSuite) token(subject, actorType string) string {
	tok, err := s.tokens.GenerateToken(s.userID, subject, actorType, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *RouterSuite) do(method, path, token string, body any) (*http.Response, []byte) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.server.URL+path, buf)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, raw
}

func (s *RouterSuite) TestHealthEndpoints() {
	resp, _ := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/readyz", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterSuite) TestProtectedRoutesRequireToken() {
	for _, path := range []string{"/v1/audit", "/v1/checkpoints"} {
		resp, _ := s.do(http.MethodGet, path, "", nil)
		s.Equal(http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp, _ := s.do(http.MethodPost, "/v1/sequence", "garbage-token", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestSequenceIssuesIncreasingPositions() {
	tok := s.token("planner", jwttoken.ActorAgent)

	var prev int64
	for i := 0; i < 3; i++ {
		resp, raw := s.do(http.MethodPost, "/v1/sequence", tok, nil)
		s.Require().Equal(http.StatusCreated, resp.StatusCode)

		var out struct {
			Sequence int64 `json:"sequence"`
		}
		s.Require().NoError(json.Unmarshal(raw, &out))
		s.Greater(out.Sequence, prev)
		prev = out.Sequence
	}
}

func (s *RouterSuite) TestAuditRecordAndList() {
	tok := s.token("planner", jwttoken.ActorAgent)

	resp, raw := s.do(http.MethodPost, "/v1/audit", tok, map[string]any{
		"action":  "read",
		"outcome": "success",
		"user_id": s.userID.String(),
		"details": map[string]any{"query": "recent"},
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(raw))

	resp, raw = s.do(http.MethodGet, "/v1/audit?user_id="+s.userID.String(), tok, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var entries []map[string]any
	s.Require().NoError(json.Unmarshal(raw, &entries))
	s.Require().Len(entries, 1)
	s.Equal("read", entries[0]["action"])
	// Actor falls back to the authenticated caller when the body omits it.
	s.Equal("agent:planner", entries[0]["actor"])
}

func (s *RouterSuite) TestAuditRejectsUnknownAction() {
	tok := s.token("planner", jwttoken.ActorAgent)

	resp, _ := s.do(http.MethodPost, "/v1/audit", tok, map[string]any{
		"action":  "obliterate",
		"outcome": "success",
	})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *RouterSuite) TestAgentCannotAuthorizeRollback() {
	tok := s.token("planner", jwttoken.ActorAgent)

	resp, raw := s.do(http.MethodPost, "/v1/checkpoints", tok, map[string]any{
		"checkpoint_type": "rollback",
		"after_sequence":  5,
		"created_by":      "system",
		"authorized_by":   "agent:planner",
	})
	s.Equal(http.StatusForbidden, resp.StatusCode, string(raw))
}

func (s *RouterSuite) TestRollbackLifecycleOverHTTP() {
	human := s.token("alice", jwttoken.ActorHuman)

	resp, raw := s.do(http.MethodPost, "/v1/checkpoints", human, map[string]any{
		"checkpoint_type": "rollback",
		"after_sequence":  5,
		"created_by":      "human",
		"authorized_by":   "human:alice",
		"reason":          "undo bad session",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(raw))

	var created struct {
		ID     string `json:"id"`
		Active bool   `json:"active"`
	}
	s.Require().NoError(json.Unmarshal(raw, &created))
	s.True(created.Active)

	s.Run("entries past the boundary are hidden", func() {
		resp, raw := s.do(http.MethodGet, "/v1/visibility/10", human, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)

		var vis struct {
			Visible bool `json:"visible"`
		}
		s.Require().NoError(json.Unmarshal(raw, &vis))
		s.False(vis.Visible)
	})

	s.Run("deactivation restores visibility", func() {
		resp, _ := s.do(http.MethodPost, fmt.Sprintf("/v1/checkpoints/%s/deactivate", created.ID), human, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)

		resp, raw := s.do(http.MethodGet, "/v1/visibility/10", human, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)

		var vis struct {
			Visible bool `json:"visible"`
		}
		s.Require().NoError(json.Unmarshal(raw, &vis))
		s.True(vis.Visible)
	})

	s.Run("checkpoint survives in the listing", func() {
		resp, raw := s.do(http.MethodGet, "/v1/checkpoints", human, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)

		var list []struct {
			ID            string     `json:"id"`
			Active        bool       `json:"active"`
			DeactivatedAt *time.Time `json:"deactivated_at"`
		}
		s.Require().NoError(json.Unmarshal(raw, &list))
		s.Require().Len(list, 1)
		s.Equal(created.ID, list[0].ID)
		s.False(list[0].Active)
		s.NotNil(list[0].DeactivatedAt)
	})
}

func (s *RouterSuite) TestDeactivateUnknownCheckpoint() {
	human := s.token("alice", jwttoken.ActorHuman)

	resp, _ := s.do(http.MethodPost, "/v1/checkpoints/"+uuid.NewString()+"/deactivate", human, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *RouterSuite) TestVerifySweep() {
	human := s.token("alice", jwttoken.ActorHuman)

	// Issue a few positions so a checkpoint at 2 is within the issued range.
	for i := 0; i < 3; i++ {
		resp, _ := s.do(http.MethodPost, "/v1/sequence", human, nil)
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
	}

	resp, raw := s.do(http.MethodPost, "/v1/checkpoints", human, map[string]any{
		"checkpoint_type": "snapshot",
		"after_sequence":  2,
		"created_by":      "human",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(raw))

	resp, raw = s.do(http.MethodPost, "/v1/verify", human, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var out struct {
		Violations []map[string]any `json:"violations"`
	}
	s.Require().NoError(json.Unmarshal(raw, &out))
	s.NotNil(out.Violations)
	s.Empty(out.Violations)
}
