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

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

// Result is what a builder returns: Compensation == "" means the operation
// has no inverse — password changes, drops, and in-place ALTER … SETTINGS
// statements can't be undone automatically.
type Result struct {
	SQL          string
	Compensation string
}

const maskedPassword = "***"

// build is the single validated core shared by BuildPreview and
// BuildExecute. masked controls only how a password value is rendered;
// every other validation rule (identifiers, privileges, intervals) runs
// identically for both callers, which is what makes "anything the preview
// builder accepts, the executor builder accepts too" hold without needing
// two parallel implementations to stay in sync by hand.
func build(operationType string, params Params) (Result, error) {
	builder, ok := builders[operationType]
	if !ok {
		return Result{}, apperrors.NewTemplateErrorf("Unknown operation type: %s", operationType)
	}
	return builder(params)
}

type builderFunc func(Params) (Result, error)

var builders map[string]builderFunc

func init() {
	builders = map[string]builderFunc{
		"create_user":             buildCreateUserUnmasked,
		"alter_user_password":     buildAlterUserPasswordUnmasked,
		"drop_user":               buildDropUser,
		"create_role":             buildCreateRole,
		"drop_role":               buildDropRole,
		"grant_role":              buildGrantRole,
		"revoke_role":             buildRevokeRole,
		"set_default_roles":       buildSetDefaultRoles,
		"grant_privilege":         buildGrantPrivilege,
		"revoke_privilege":        buildRevokePrivilege,
		"create_settings_profile": buildCreateSettingsProfile,
		"alter_settings_profile":  buildAlterSettingsProfile,
		"drop_settings_profile":   buildDropSettingsProfile,
		"assign_settings_profile": buildAssignSettingsProfile,
		"create_quota":            buildCreateQuota,
		"alter_quota":             buildAlterQuota,
		"drop_quota":              buildDropQuota,
		"assign_quota":            buildAssignQuota,
		"create_row_policy":       buildCreateRowPolicy,
		"alter_row_policy":        buildAlterRowPolicy,
		"drop_row_policy":         buildDropRowPolicy,
	}
}

// KnownOperationType reports whether opType is one the builder registry
// recognizes, for proposal-creation validation.
func KnownOperationType(opType string) bool {
	_, ok := builders[opType]
	return ok
}

// ───────── Users ──────────────────────────────────────────────

func buildCreateUser(p Params, password string) (Result, error) {
	username, err := requireString(p, "username")
	if err != nil {
		return Result{}, err
	}
	if _, err := requireString(p, "password"); err != nil {
		return Result{}, err
	}
	user, err := QuoteIdentifier(username)
	if err != nil {
		return Result{}, err
	}
	sql := fmt.Sprintf("CREATE USER %s IDENTIFIED WITH sha256_password BY '%s'", user, password)

	if hostIPs := optStringSlice(p, "host_ip"); len(hostIPs) > 0 {
		quoted := make([]string, len(hostIPs))
		for i, h := range hostIPs {
			quoted[i] = "'" + EscapeString(h) + "'"
		}
		sql += " HOST IP " + strings.Join(quoted, ", ")
	}

	if roles := optStringSlice(p, "default_roles"); len(roles) > 0 {
		quoted := make([]string, len(roles))
		for i, r := range roles {
			q, err := QuoteIdentifier(r)
			if err != nil {
				return Result{}, err
			}
			quoted[i] = q
		}
		sql += " DEFAULT ROLE " + strings.Join(quoted, ", ")
	}

	return Result{SQL: sql, Compensation: fmt.Sprintf("DROP USER IF EXISTS %s", user)}, nil
}

func buildCreateUserUnmasked(p Params) (Result, error) {
	pwd, err := requireString(p, "password")
	if err != nil {
		return Result{}, err
	}
	return buildCreateUser(p, EscapeString(pwd))
}

func buildAlterUserPassword(p Params, password string) (Result, error) {
	username, err := requireString(p, "username")
	if err != nil {
		return Result{}, err
	}
	if _, err := requireString(p, "password"); err != nil {
		return Result{}, err
	}
	user, err := QuoteIdentifier(username)
	if err != nil {
		return Result{}, err
	}
	sql := fmt.Sprintf("ALTER USER %s IDENTIFIED WITH sha256_password BY '%s'", user, password)
	return Result{SQL: sql}, nil
}

func buildAlterUserPasswordUnmasked(p Params) (Result, error) {
	pwd, err := requireString(p, "password")
	if err != nil {
		return Result{}, err
	}
	return buildAlterUserPassword(p, EscapeString(pwd))
}

func buildDropUser(p Params) (Result, error) {
	username, err := requireString(p, "username")
	if err != nil {
		return Result{}, err
	}
	user, err := QuoteIdentifier(username)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: fmt.Sprintf("DROP USER IF EXISTS %s", user)}, nil
}

// ───────── Roles ────────────────────────────────────────────────

func buildCreateRole(p Params) (Result, error) {
	roleName, err := requireString(p, "role_name")
	if err != nil {
		return Result{}, err
	}
	role, err := QuoteIdentifier(roleName)
	if err != nil {
		return Result{}, err
	}
	return Result{
		SQL:          fmt.Sprintf("CREATE ROLE %s", role),
		Compensation: fmt.Sprintf("DROP ROLE IF EXISTS %s", role),
	}, nil
}

func buildDropRole(p Params) (Result, error) {
	roleName, err := requireString(p, "role_name")
	if err != nil {
		return Result{}, err
	}
	role, err := QuoteIdentifier(roleName)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: fmt.Sprintf("DROP ROLE IF EXISTS %s", role)}, nil
}

func buildGrantRole(p Params) (Result, error) {
	roleName, err := requireString(p, "role_name")
	if err != nil {
		return Result{}, err
	}
	if _, err := requireString(p, "target_type"); err != nil {
		return Result{}, err
	}
	targetName, err := requireString(p, "target_name")
	if err != nil {
		return Result{}, err
	}
	role, err := QuoteIdentifier(roleName)
	if err != nil {
		return Result{}, err
	}
	target, err := QuoteIdentifier(targetName)
	if err != nil {
		return Result{}, err
	}
	return Result{
		SQL:          fmt.Sprintf("GRANT %s TO %s", role, target),
		Compensation: fmt.Sprintf("REVOKE %s FROM %s", role, target),
	}, nil
}

func buildRevokeRole(p Params) (Result, error) {
	roleName, err := requireString(p, "role_name")
	if err != nil {
		return Result{}, err
	}
	if _, err := requireString(p, "target_type"); err != nil {
		return Result{}, err
	}
	targetName, err := requireString(p, "target_name")
	if err != nil {
		return Result{}, err
	}
	role, err := QuoteIdentifier(roleName)
	if err != nil {
		return Result{}, err
	}
	target, err := QuoteIdentifier(targetName)
	if err != nil {
		return Result{}, err
	}
	return Result{
		SQL:          fmt.Sprintf("REVOKE %s FROM %s", role, target),
		Compensation: fmt.Sprintf("GRANT %s TO %s", role, target),
	}, nil
}

func buildSetDefaultRoles(p Params) (Result, error) {
	username, err := requireString(p, "username")
	if err != nil {
		return Result{}, err
	}
	user, err := QuoteIdentifier(username)
	if err != nil {
		return Result{}, err
	}

	rolesVal, ok := p["roles"]
	if !ok || rolesVal == nil {
		return Result{}, apperrors.NewTemplateErrorf("Missing required parameter: roles")
	}

	var rolesClause string
	switch v := rolesVal.(type) {
	case string:
		if v == "ALL" {
			rolesClause = "ALL"
		} else {
			rolesClause = "NONE"
		}
	default:
		roles := optStringSlice(p, "roles")
		if len(roles) == 0 {
			rolesClause = "NONE"
		} else {
			quoted := make([]string, len(roles))
			for i, r := range roles {
				q, err := QuoteIdentifier(r)
				if err != nil {
					return Result{}, err
				}
				quoted[i] = q
			}
			rolesClause = strings.Join(quoted, ", ")
		}
	}

	return Result{SQL: fmt.Sprintf("SET DEFAULT ROLE %s TO %s", rolesClause, user)}, nil
}

// ───────── Privileges ───────────────────────────────────────────

func buildGrantPrivilege(p Params) (Result, error) {
	privilege, err := requireString(p, "privilege")
	if err != nil {
		return Result{}, err
	}
	if _, err := requireString(p, "target_type"); err != nil {
		return Result{}, err
	}
	targetName, err := requireString(p, "target_name")
	if err != nil {
		return Result{}, err
	}
	priv := strings.ToUpper(privilege)
	if !ValidatePrivilege(priv) {
		return Result{}, apperrors.NewTemplateErrorf("Privilege not in allow-list: %s", priv)
	}
	scope, err := QuoteScope(optString(p, "database"), optString(p, "table"))
	if err != nil {
		return Result{}, err
	}
	target, err := QuoteIdentifier(targetName)
	if err != nil {
		return Result{}, err
	}
	return Result{
		SQL:          fmt.Sprintf("GRANT %s ON %s TO %s", priv, scope, target),
		Compensation: fmt.Sprintf("REVOKE %s ON %s FROM %s", priv, scope, target),
	}, nil
}

func buildRevokePrivilege(p Params) (Result, error) {
	privilege, err := requireString(p, "privilege")
	if err != nil {
		return Result{}, err
	}
	if _, err := requireString(p, "target_type"); err != nil {
		return Result{}, err
	}
	targetName, err := requireString(p, "target_name")
	if err != nil {
		return Result{}, err
	}
	priv := strings.ToUpper(privilege)
	if !ValidatePrivilege(priv) {
		return Result{}, apperrors.NewTemplateErrorf("Privilege not in allow-list: %s", priv)
	}
	scope, err := QuoteScope(optString(p, "database"), optString(p, "table"))
	if err != nil {
		return Result{}, err
	}
	target, err := QuoteIdentifier(targetName)
	if err != nil {
		return Result{}, err
	}
	return Result{
		SQL:          fmt.Sprintf("REVOKE %s ON %s FROM %s", priv, scope, target),
		Compensation: fmt.Sprintf("GRANT %s ON %s TO %s", priv, scope, target),
	}, nil
}

// ───────── Settings profiles ────────────────────────────────────

func settingsClause(settings map[string]any) (string, error) {
	// Deterministic order keeps preview/execute SQL stable across calls.
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if !ValidateIdentifier(k) {
			return "", apperrors.NewTemplateErrorf("Invalid setting name: %q", k)
		}
		v := settings[k]
		parts = append(parts, fmt.Sprintf("%s = %s", k, numericLiteral(v)))
	}
	return strings.Join(parts, ", "), nil
}

func buildCreateSettingsProfile(p Params) (Result, error) {
	name, err := requireString(p, "name")
	if err != nil {
		return Result{}, err
	}
	settings, err := requireMap(p, "settings")
	if err != nil {
		return Result{}, err
	}
	quoted, err := QuoteIdentifier(name)
	if err != nil {
		return Result{}, err
	}
	clause, err := settingsClause(settings)
	if err != nil {
		return Result{}, err
	}
	return Result{
		SQL:          fmt.Sprintf("CREATE SETTINGS PROFILE %s SETTINGS %s", quoted, clause),
		Compensation: fmt.Sprintf("DROP SETTINGS PROFILE IF EXISTS %s", quoted),
	}, nil
}

func buildAlterSettingsProfile(p Params) (Result, error) {
	name, err := requireString(p, "name")
	if err != nil {
		return Result{}, err
	}
	settings, err := requireMap(p, "settings")
	if err != nil {
		return Result{}, err
	}
	quoted, err := QuoteIdentifier(name)
	if err != nil {
		return Result{}, err
	}
	clause, err := settingsClause(settings)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: fmt.Sprintf("ALTER SETTINGS PROFILE %s SETTINGS %s", quoted, clause)}, nil
}

func buildDropSettingsProfile(p Params) (Result, error) {
	name, err := requireString(p, "name")
	if err != nil {
		return Result{}, err
	}
	quoted, err := QuoteIdentifier(name)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: fmt.Sprintf("DROP SETTINGS PROFILE IF EXISTS %s", quoted)}, nil
}

func buildAssignSettingsProfile(p Params) (Result, error) {
	targetName, err := requireString(p, "target_name")
	if err != nil {
		return Result{}, err
	}
	profileName, err := requireString(p, "profile_name")
	if err != nil {
		return Result{}, err
	}
	target, err := QuoteIdentifier(targetName)
	if err != nil {
		return Result{}, err
	}
	profile, err := QuoteIdentifier(profileName)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: fmt.Sprintf("ALTER USER %s SETTINGS PROFILE %s", target, profile)}, nil
}

// ───────── Quotas ────────────────────────────────────────────────

func quotaClause(intervals []any) (string, error) {
	parts := make([]string, 0, len(intervals))
	for _, raw := range intervals {
		iv, ok := raw.(map[string]any)
		if !ok {
			return "", apperrors.NewTemplateErrorf("invalid quota interval entry")
		}
		duration := "1 hour"
		if d, ok := iv["duration"].(string); ok && d != "" {
			duration = d
		}
		if !ValidateInterval(duration) {
			return "", apperrors.NewTemplateErrorf("Invalid quota interval: %q", duration)
		}

		limits, _ := iv["limits"].(map[string]any)
		keys := make([]string, 0, len(limits))
		for k := range limits {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		limitParts := make([]string, 0, len(keys))
		for _, k := range keys {
			if !ValidateIdentifier(k) {
				return "", apperrors.NewTemplateErrorf("Invalid quota limit name: %q", k)
			}
			lit, err := intLiteral(limits[k])
			if err != nil {
				return "", err
			}
			limitParts = append(limitParts, fmt.Sprintf("%s = %s", k, lit))
		}
		parts = append(parts, fmt.Sprintf("FOR INTERVAL %s MAX %s", duration, strings.Join(limitParts, ", ")))
	}
	return strings.Join(parts, " "), nil
}

func buildCreateQuota(p Params) (Result, error) {
	name, err := requireString(p, "name")
	if err != nil {
		return Result{}, err
	}
	intervals, err := requireSlice(p, "intervals")
	if err != nil {
		return Result{}, err
	}
	quoted, err := QuoteIdentifier(name)
	if err != nil {
		return Result{}, err
	}
	clause, err := quotaClause(intervals)
	if err != nil {
		return Result{}, err
	}
	return Result{
		SQL:          fmt.Sprintf("CREATE QUOTA %s %s", quoted, clause),
		Compensation: fmt.Sprintf("DROP QUOTA IF EXISTS %s", quoted),
	}, nil
}

func buildAlterQuota(p Params) (Result, error) {
	name, err := requireString(p, "name")
	if err != nil {
		return Result{}, err
	}
	intervals, err := requireSlice(p, "intervals")
	if err != nil {
		return Result{}, err
	}
	quoted, err := QuoteIdentifier(name)
	if err != nil {
		return Result{}, err
	}
	clause, err := quotaClause(intervals)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: fmt.Sprintf("ALTER QUOTA %s %s", quoted, clause)}, nil
}

func buildDropQuota(p Params) (Result, error) {
	name, err := requireString(p, "name")
	if err != nil {
		return Result{}, err
	}
	quoted, err := QuoteIdentifier(name)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: fmt.Sprintf("DROP QUOTA IF EXISTS %s", quoted)}, nil
}

func buildAssignQuota(p Params) (Result, error) {
	targetName, err := requireString(p, "target_name")
	if err != nil {
		return Result{}, err
	}
	quotaName, err := requireString(p, "quota_name")
	if err != nil {
		return Result{}, err
	}
	target, err := QuoteIdentifier(targetName)
	if err != nil {
		return Result{}, err
	}
	quota, err := QuoteIdentifier(quotaName)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: fmt.Sprintf("ALTER USER %s QUOTA %s", target, quota)}, nil
}

// ───────── Row policies ──────────────────────────────────────────
//
// Absent from the reference implementation's executor-side BUILDERS
// registry — only the governance preview side generated these. Completed
// here so the executor can actually apply what a proposal previews.

func rowPolicyScope(p Params) (name, db, table string, err error) {
	rawName, err := requireString(p, "name")
	if err != nil {
		return "", "", "", err
	}
	rawDB, err := requireString(p, "database")
	if err != nil {
		return "", "", "", err
	}
	rawTable, err := requireString(p, "table")
	if err != nil {
		return "", "", "", err
	}
	name, err = QuoteIdentifier(rawName)
	if err != nil {
		return "", "", "", err
	}
	db, err = QuoteIdentifier(rawDB)
	if err != nil {
		return "", "", "", err
	}
	table, err = QuoteIdentifier(rawTable)
	if err != nil {
		return "", "", "", err
	}
	return name, db, table, nil
}

func buildCreateRowPolicy(p Params) (Result, error) {
	name, db, table, err := rowPolicyScope(p)
	if err != nil {
		return Result{}, err
	}
	condition := optString(p, "condition")
	if condition == "" {
		condition = "1"
	}
	policyType := "PERMISSIVE"
	if optBool(p, "restrictive") {
		policyType = "RESTRICTIVE"
	}
	sql := fmt.Sprintf("CREATE ROW POLICY %s ON %s.%s AS %s FOR SELECT USING %s", name, db, table, policyType, condition)
	if applyTo := optStringSlice(p, "apply_to"); len(applyTo) > 0 {
		quoted := make([]string, len(applyTo))
		for i, t := range applyTo {
			q, err := QuoteIdentifier(t)
			if err != nil {
				return Result{}, err
			}
			quoted[i] = q
		}
		sql += " TO " + strings.Join(quoted, ", ")
	}
	return Result{
		SQL:          sql,
		Compensation: fmt.Sprintf("DROP ROW POLICY IF EXISTS %s ON %s.%s", name, db, table),
	}, nil
}

func buildAlterRowPolicy(p Params) (Result, error) {
	name, db, table, err := rowPolicyScope(p)
	if err != nil {
		return Result{}, err
	}
	parts := []string{fmt.Sprintf("ALTER ROW POLICY %s ON %s.%s", name, db, table)}
	if condition := optString(p, "condition"); condition != "" {
		parts = append(parts, fmt.Sprintf("USING %s", condition))
	}
	if applyTo := optStringSlice(p, "apply_to"); len(applyTo) > 0 {
		quoted := make([]string, len(applyTo))
		for i, t := range applyTo {
			q, err := QuoteIdentifier(t)
			if err != nil {
				return Result{}, err
			}
			quoted[i] = q
		}
		parts = append(parts, "TO "+strings.Join(quoted, ", "))
	}
	return Result{SQL: strings.Join(parts, " ")}, nil
}

func buildDropRowPolicy(p Params) (Result, error) {
	name, db, table, err := rowPolicyScope(p)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: fmt.Sprintf("DROP ROW POLICY IF EXISTS %s ON %s.%s", name, db, table)}, nil
}
