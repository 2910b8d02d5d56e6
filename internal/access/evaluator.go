// Package access holds the pure access-decision function. It performs no I/O:
// callers must hand it a consistent snapshot of the acting user, target user
// and page, and must not mutate under a newer snapshot than the one checked.
package access

import (
	"github.com/meridian-labs/meridian/internal/pages"
	"github.com/meridian-labs/meridian/internal/roles"
	"github.com/meridian-labs/meridian/internal/users"
)

// Action is the kind of access being requested.
type Action string

const (
	ActionView Action = "view"
	ActionEdit Action = "edit"
)

// Reason names why a request was denied.
type Reason string

const (
	ReasonActorInactive        Reason = "actor-inactive"
	ReasonTargetInactive       Reason = "target-inactive"
	ReasonNotAssigned          Reason = "not-assigned"
	ReasonPageInactive         Reason = "page-inactive"
	ReasonCrossAccessForbidden Reason = "cross-access-forbidden"
	ReasonEditForbidden        Reason = "edit-forbidden"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

// Evaluator decides whether an actor may perform an action on a page that
// belongs to a target user's view.
type Evaluator struct {
	catalog *roles.Catalog
}

// NewEvaluator constructs an Evaluator over the role catalog.
func NewEvaluator(catalog *roles.Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Evaluate applies the ordered rule list. The only error it can return is
// roles.ErrUnknownRole, which marks corrupted stored data and is fatal to the
// operation. Self-access and delegated access run through separate rule
// functions and never share rules.
func (e *Evaluator) Evaluate(actor, target users.User, page pages.Page, action Action) (Decision, error) {
	if !actor.IsActive {
		return deny(ReasonActorInactive), nil
	}
	if actor.ID == target.ID {
		return e.evaluateSelf(actor, page, action)
	}
	return e.evaluateDelegated(actor, target, page, action)
}

func (e *Evaluator) evaluateSelf(actor users.User, page pages.Page, action Action) (Decision, error) {
	if !actor.HasPage(page.ID) {
		return deny(ReasonNotAssigned), nil
	}
	if !page.IsActive {
		return deny(ReasonPageInactive), nil
	}
	if action == ActionEdit {
		granted, err := e.catalog.Grants(actor.Role, roles.CapEditOwnPages)
		if err != nil {
			return Decision{}, err
		}
		if !granted {
			return deny(ReasonEditForbidden), nil
		}
	}
	return allow(), nil
}

func (e *Evaluator) evaluateDelegated(actor, target users.User, page pages.Page, action Action) (Decision, error) {
	granted, err := e.catalog.Grants(actor.Role, roles.CapCrossUserAccess)
	if err != nil {
		return Decision{}, err
	}
	if !granted {
		return deny(ReasonCrossAccessForbidden), nil
	}
	if !target.IsActive {
		return deny(ReasonTargetInactive), nil
	}
	if !target.HasPage(page.ID) {
		return deny(ReasonNotAssigned), nil
	}
	if !page.IsActive {
		return deny(ReasonPageInactive), nil
	}
	// For delegated edits the edit intent is the action itself; preview
	// sessions attempting mutations are rejected by the session layer.
	return allow(), nil
}
