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

package executor

import "strings"

// RedactPassword strips the password from an IDENTIFIED WITH ... BY '...'
// clause for log output: the statement is truncated at BY ' and a mask
// appended. Statements without the clause pass through unchanged.
func RedactPassword(sql string) string {
	idx := strings.Index(sql, "BY '")
	if idx < 0 {
		return sql
	}
	return sql[:idx+len("BY '")] + "***'"
}
