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

package sqltemplate

import "strings"

// JoinPreview newline-joins each operation's forward SQL, in order.
func JoinPreview(results []Result) string {
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = r.SQL
	}
	return strings.Join(lines, "\n")
}

// JoinCompensation newline-joins each operation's compensation SQL in
// reverse order, skipping operations with none.
func JoinCompensation(results []Result) string {
	var lines []string
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Compensation != "" {
			lines = append(lines, results[i].Compensation)
		}
	}
	return strings.Join(lines, "\n")
}
