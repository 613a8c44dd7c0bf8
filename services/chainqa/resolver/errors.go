// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/chainqa/services/chainqa/command"
)

// ErrorClass classifies a step failure.
type ErrorClass string

const (
	// ClassParse is a malformed argument rejected before any engine call.
	ClassParse ErrorClass = "parse"

	// ClassResolution means no candidate qualified for the step.
	ClassResolution ErrorClass = "resolution"

	// ClassStructural means the engine failed to build or evaluate a place.
	ClassStructural ErrorClass = "structural"
)

// StepError is the failure of one step.
type StepError struct {
	Step   command.Step `json:"step"`
	Class  ErrorClass   `json:"class"`
	Reason string       `json:"reason"`
	Err    error        `json:"-"`
}

// Error implements error.
func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %q (%s): %s: %v", e.Step.Raw, e.Class, e.Reason, e.Err)
	}
	return fmt.Sprintf("step %q (%s): %s", e.Step.Raw, e.Class, e.Reason)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// AsStepError extracts a *StepError from err.
func AsStepError(err error) (*StepError, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func parseErr(step command.Step, reason string, err error) *StepError {
	return &StepError{Step: step, Class: ClassParse, Reason: reason, Err: err}
}

func resolutionErr(step command.Step, reason string, err error) *StepError {
	return &StepError{Step: step, Class: ClassResolution, Reason: reason, Err: err}
}

func structuralErr(step command.Step, reason string, err error) *StepError {
	return &StepError{Step: step, Class: ClassStructural, Reason: reason, Err: err}
}
