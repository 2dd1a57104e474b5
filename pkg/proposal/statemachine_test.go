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

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

var _ = Describe("state machine", func() {
	DescribeTable("CanTransition",
		func(from, to string, want bool) {
			Expect(CanTransition(from, to)).To(Equal(want))
		},
		Entry("draft to submitted", StatusDraft, StatusSubmitted, true),
		Entry("submitted to approved", StatusSubmitted, StatusApproved, true),
		Entry("submitted to rejected", StatusSubmitted, StatusRejected, true),
		Entry("approved to executing", StatusApproved, StatusExecuting, true),
		Entry("executing to executed", StatusExecuting, StatusExecuted, true),
		Entry("executing to partially_executed", StatusExecuting, StatusPartiallyExecuted, true),
		Entry("executing to failed", StatusExecuting, StatusFailed, true),
		Entry("draft cannot be approved", StatusDraft, StatusApproved, false),
		Entry("rejected is absorbing", StatusRejected, StatusSubmitted, false),
		Entry("executed is absorbing", StatusExecuted, StatusExecuting, false),
		Entry("failed is absorbing", StatusFailed, StatusExecuting, false),
	)

	DescribeTable("guards name the current status in the error",
		func(check func(string) error, status string) {
			err := check(status)
			Expect(err).To(HaveOccurred())

			var appErr *apperrors.AppError
			Expect(err).To(BeAssignableToTypeOf(appErr))
			appErr = err.(*apperrors.AppError)
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeState))
			Expect(appErr.Details).To(ContainSubstring(status))
		},
		Entry("reviewing a draft", EnsureReviewable, StatusDraft),
		Entry("reviewing an executed proposal", EnsureReviewable, StatusExecuted),
		Entry("executing a submitted proposal", EnsureExecutable, StatusSubmitted),
		Entry("dry-running a rejected proposal", EnsureDryRunnable, StatusRejected),
	)

	It("permits dry-run from submitted and approved without a transition", func() {
		Expect(EnsureDryRunnable(StatusSubmitted)).To(Succeed())
		Expect(EnsureDryRunnable(StatusApproved)).To(Succeed())
	})
})
