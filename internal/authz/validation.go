// Copyright 2026 The EHSAdmin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/greenledger/ehsadmin/internal/permission"
)

// Field names reported by ValidationError.
const (
	FieldName             = "userType"
	FieldDescription      = "description"
	FieldPermissionObject = "permissionObject"
)

var (
	namePattern        = regexp.MustCompile(`^[A-Za-z0-9 ]+$`)
	descriptionPattern = regexp.MustCompile(`^[A-Za-z0-9 .,-]+$`)
)

// ValidationError is a user-fixable problem with one field of a role.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationErrors collects every field problem found in one pass.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() []error {
	out := make([]error, len(v))
	for i, e := range v {
		out[i] = e
	}
	return out
}

// Fields maps each offending field to its message.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, e := range v {
		out[e.Field] = e.Err.Error()
	}
	return out
}

// ValidateName checks a role name against [A-Za-z0-9 ].
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || !namePattern.MatchString(name) {
		return &ValidationError{Field: FieldName, Err: ErrInvalidRoleName}
	}
	return nil
}

// ValidateDescription checks a description against [A-Za-z0-9 .,-].
func ValidateDescription(description string) error {
	if strings.TrimSpace(description) == "" || !descriptionPattern.MatchString(description) {
		return &ValidationError{Field: FieldDescription, Err: ErrInvalidRoleDescription}
	}
	return nil
}

// ValidateInput checks name and description. It never contacts storage, so
// the editor runs it before submitting.
func ValidateInput(in RoleInput) error {
	var errs ValidationErrors
	for _, err := range []error{ValidateName(in.Name), ValidateDescription(in.Description)} {
		var ve *ValidationError
		if errors.As(err, &ve) {
			errs = append(errs, ve)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// normalizeObject makes a submitted permission object total. Missing keys
// are denied; unknown keys are rejected. A nil object grants nothing.
func normalizeObject(obj permission.Object) (permission.Object, error) {
	norm, err := obj.Normalize()
	if err != nil {
		return nil, ValidationErrors{{Field: FieldPermissionObject, Err: errors.Join(ErrUnknownPermission, err)}}
	}
	return norm, nil
}

// CheckRoleID reports ErrRoleNotFound for ids that are not UUIDs, since no
// stored role can carry one.
func CheckRoleID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrRoleNotFound, id)
	}
	return nil
}
