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

// BuildExecute regenerates (forward_sql, compensation_sql) from params at
// execution time. It never trusts a previously stored SQL string, and it
// fails hard — the caller (the job executor's step materializer) treats
// any error as a template failure that skips the remaining steps.
func BuildExecute(operationType string, params Params) (Result, error) {
	return build(operationType, params)
}
