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

// Package sqltemplate builds the DDL (and its compensation) for every RBAC
// operation_type the control plane supports, from a validated params
// mapping. Two entry points live here: BuildPreview (used by the
// proposal engine — masks passwords, renders a build failure as a SQL
// comment) and BuildExecute (used by the executor — strict, never trusts
// a previously stored SQL string). Both run the same builders and the
// identifier/privilege/interval validation rules in this file, so that
// anything the preview builder accepts, the executor builder accepts too.
package sqltemplate

import (
	"regexp"
	"strings"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidateIdentifier reports whether name is a safe, unquoted identifier.
func ValidateIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// QuoteIdentifier backtick-quotes name, failing fatally (TemplateError) if
// it is not a safe identifier.
func QuoteIdentifier(name string) (string, error) {
	if name == "" || !ValidateIdentifier(name) {
		return "", apperrors.NewTemplateErrorf("invalid identifier: %q", name)
	}
	return "`" + name + "`", nil
}

// EscapeString inline-escapes a string literal for a single-quoted SQL
// value: backslashes are doubled, then apostrophes are escaped.
func EscapeString(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return value
}

// QuoteScope renders the (database, table) scope syntax: "*.*" when
// database is empty/"*"; "`db`.*" when table is empty/"*";
// "`db`.`table`" otherwise.
func QuoteScope(database, table string) (string, error) {
	if database == "" || database == "*" {
		return "*.*", nil
	}
	db, err := QuoteIdentifier(database)
	if err != nil {
		return "", err
	}
	if table == "" || table == "*" {
		return db + ".*", nil
	}
	tbl, err := QuoteIdentifier(table)
	if err != nil {
		return "", err
	}
	return db + "." + tbl, nil
}

// AllowedPrivileges is the fixed allow-list of grantable privileges.
// Anything outside it is a fatal TemplateError, never silently passed
// through.
var AllowedPrivileges = map[string]bool{
	"SELECT": true, "INSERT": true, "ALTER": true, "CREATE": true, "DROP": true,
	"SHOW": true, "SHOW DATABASES": true, "SHOW TABLES": true, "SHOW COLUMNS": true,
	"CREATE TABLE": true, "CREATE VIEW": true, "CREATE DICTIONARY": true,
	"CREATE TEMPORARY TABLE": true, "CREATE FUNCTION": true,
	"ALTER TABLE": true, "ALTER VIEW": true,
	"TRUNCATE": true, "OPTIMIZE": true, "KILL QUERY": true,
	"SYSTEM": true, "SOURCES": true, "CLUSTER": true,
}

// BroadPrivileges is the superset that marks a proposal as elevated
// (is_elevated); it never blocks a build, and no warning is added to the
// preview SQL.
var BroadPrivileges = map[string]bool{
	"ALL": true, "ALL PRIVILEGES": true, "GRANT OPTION": true,
	"CREATE": true, "DROP": true, "ALTER": true, "SYSTEM": true,
}

// ValidatePrivilege reports whether priv (already upper-cased by the
// caller) is in the allow-list.
func ValidatePrivilege(priv string) bool {
	return AllowedPrivileges[strings.ToUpper(priv)]
}

// IsBroadPrivilege reports whether priv marks a proposal as elevated.
func IsBroadPrivilege(priv string) bool {
	return BroadPrivileges[strings.ToUpper(priv)]
}

// ValidIntervals is the closed set of quota interval durations allowed,
// matched case-insensitively.
var ValidIntervals = map[string]bool{
	"1 second": true, "1 minute": true, "5 minutes": true, "15 minutes": true,
	"1 hour": true, "1 day": true, "1 week": true, "1 month": true,
	"1 quarter": true, "1 year": true,
}

func ValidateInterval(interval string) bool {
	return ValidIntervals[strings.ToLower(interval)]
}
