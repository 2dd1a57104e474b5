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

import "fmt"

// BuildPreview renders the display-only (sql_preview, compensation_sql)
// pair the proposal engine stores when a proposal is created. Passwords
// are masked; unlike BuildExecute, a failure never aborts proposal
// creation — it is rendered inline as a SQL comment so the reviewer can
// see what is wrong with that one step without the whole proposal failing
// to save.
func BuildPreview(operationType string, params Params) Result {
	switch operationType {
	case "create_user":
		if _, err := requireString(params, "username"); err != nil {
			return errorComment(operationType, err)
		}
		if _, err := requireString(params, "password"); err != nil {
			return errorComment(operationType, err)
		}
		res, err := buildCreateUser(params, maskedPassword)
		if err != nil {
			return errorComment(operationType, err)
		}
		return res
	case "alter_user_password":
		if _, err := requireString(params, "username"); err != nil {
			return errorComment(operationType, err)
		}
		if _, err := requireString(params, "password"); err != nil {
			return errorComment(operationType, err)
		}
		res, err := buildAlterUserPassword(params, maskedPassword)
		if err != nil {
			return errorComment(operationType, err)
		}
		return res
	}

	res, err := build(operationType, params)
	if err != nil {
		if !KnownOperationType(operationType) {
			return Result{SQL: fmt.Sprintf("-- Unknown operation: %s", operationType)}
		}
		return errorComment(operationType, err)
	}
	return res
}

func errorComment(operationType string, err error) Result {
	return Result{SQL: fmt.Sprintf("-- Error: %s", err.Error())}
}
