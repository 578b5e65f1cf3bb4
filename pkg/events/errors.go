package events

import "errors"

// ErrAccessibilityPermission indicates the host must grant Accessibility trust.
var ErrAccessibilityPermission = errors.New("macOS accessibility permission required for event capture")

// ErrTapUnavailable reports that the platform refused to create an event tap.
var ErrTapUnavailable = errors.New("failed to create CGEvent tap")
