package enums

import "fmt"

// CourseState tracks where a course record sits in its lifecycle. The wire
// code (0, 1, 2) is the ordinal the contract reports.
type CourseState string

const (
	CourseStatePurchased   CourseState = "purchased"
	CourseStateActivated   CourseState = "activated"
	CourseStateDeactivated CourseState = "deactivated"
)

var validCourseStates = []CourseState{
	CourseStatePurchased,
	CourseStateActivated,
	CourseStateDeactivated,
}

// String implements fmt.Stringer.
func (s CourseState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CourseState.
func (s CourseState) IsValid() bool {
	for _, candidate := range validCourseStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// Code returns the contract ordinal for the state.
func (s CourseState) Code() uint8 {
	for i, candidate := range validCourseStates {
		if candidate == s {
			return uint8(i)
		}
	}
	return 0
}

// ParseCourseState converts raw input into a CourseState.
func ParseCourseState(value string) (CourseState, error) {
	for _, candidate := range validCourseStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid course state %q", value)
}

// CourseStateFromCode maps a contract ordinal back to its state.
func CourseStateFromCode(code uint8) (CourseState, error) {
	if int(code) >= len(validCourseStates) {
		return "", fmt.Errorf("invalid course state code %d", code)
	}
	return validCourseStates[code], nil
}
