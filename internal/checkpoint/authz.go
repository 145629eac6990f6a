package checkpoint

import (
	"context"
	"strings"

	"github.com/trinsiklabs/recall/pkg/domainerr"
)

// Classifier decides whether an actor descriptor denotes a human. The
// account service owns the classification mechanism; this core only consumes
// the verdict.
type Classifier interface {
	IsHuman(ctx context.Context, actor string) (bool, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, actor string) (bool, error)

func (f ClassifierFunc) IsHuman(ctx context.Context, actor string) (bool, error) {
	return f(ctx, actor)
}

// PrefixClassifier treats "human:<id>" descriptors as human. Matches the
// actor convention the token middleware establishes from validated claims.
type PrefixClassifier struct{}

func (PrefixClassifier) IsHuman(_ context.Context, actor string) (bool, error) {
	return strings.HasPrefix(actor, "human:"), nil
}

// Gate enforces the rollback authorization rule: a rollback checkpoint is
// created only when the authorizing party (not the creating party) is a
// human. A denied request is never coerced into a different checkpoint type.
type Gate struct {
	classifier Classifier
}

func NewGate(classifier Classifier) *Gate {
	if classifier == nil {
		classifier = PrefixClassifier{}
	}
	return &Gate{classifier: classifier}
}

// Authorize returns an authorization error when req violates the rollback
// rule. Non-rollback types pass unconditionally.
func (g *Gate) Authorize(ctx context.Context, req CreateRequest) error {
	if req.Type != TypeRollback {
		return nil
	}
	if req.AuthorizedBy == "" {
		return domainerr.New(domainerr.CodeUnauthorized, "rollback checkpoint requires a human authorizing party")
	}
	human, err := g.classifier.IsHuman(ctx, req.AuthorizedBy)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeInternal, "actor classification failed", err)
	}
	if !human {
		return domainerr.New(domainerr.CodeUnauthorized, "rollback authorizer must be a human actor")
	}
	return nil
}
