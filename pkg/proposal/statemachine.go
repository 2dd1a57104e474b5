/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package proposal

import apperrors "github.com/jordigilh/govrbac/internal/errors"

// transitions is the status DAG. rejected, executed, partially_executed,
// and failed are absorbing.
var transitions = map[string][]string{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusExecuting},
	StatusExecuting: {StatusExecuted, StatusPartiallyExecuted, StatusFailed},
}

// CanTransition reports whether from → to is a legal status move.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// EnsureReviewable fails unless a decision may be recorded: a proposal is
// reviewable only while submitted.
func EnsureReviewable(status string) error {
	if status != StatusSubmitted {
		return apperrors.NewStateError("only submitted proposals can be approved or rejected").
			WithDetailsf("current status: %s", status)
	}
	return nil
}

// EnsureDryRunnable fails unless a dry-run may be posted. Dry-run is
// permitted from submitted or approved and never changes status.
func EnsureDryRunnable(status string) error {
	if status != StatusSubmitted && status != StatusApproved {
		return apperrors.NewStateError("dry-run requires a submitted or approved proposal").
			WithDetailsf("current status: %s", status)
	}
	return nil
}

// EnsureExecutable fails unless apply may start.
func EnsureExecutable(status string) error {
	if status != StatusApproved {
		return apperrors.NewStateError("only approved proposals can be executed").
			WithDetailsf("current status: %s", status)
	}
	return nil
}
