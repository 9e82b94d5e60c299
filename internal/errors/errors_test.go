package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		CodeUnknown,
		CodeValidation,
		CodeConfiguration,
		CodeCanceled,
		CodeScanNotFound,
		CodeTemplateNotFound,
		CodeFindingNotFound,
		CodeEngineStopped,
		CodeTickOverlap,
		CodeTemplateParse,
		CodeStateCorrupted,
		CodeFileNotFound,
		CodeFilePermission,
	}

	for _, code := range codes {
		if string(code) == "" {
			t.Errorf("Error code %v should not be empty", code)
		}
	}
}

func TestStoreError(t *testing.T) {
	t.Run("error with id", func(t *testing.T) {
		err := ErrScanNotFound("scan-001")
		if err.Code != CodeScanNotFound {
			t.Errorf("Expected code %s, got %s", CodeScanNotFound, err.Code)
		}
		expected := "[SCAN_NOT_FOUND] Scan not found (id: scan-001)"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("error without id", func(t *testing.T) {
		err := NewStoreError(CodeStateCorrupted, "state file corrupted", "")
		expected := "[STATE_CORRUPTED] state file corrupted"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})
}

func TestSimulationError(t *testing.T) {
	t.Run("wrapped error", func(t *testing.T) {
		cause := fmt.Errorf("context canceled")
		err := WrapSimulationError(CodeCanceled, "validation interrupted", cause)
		if err.Unwrap() != cause {
			t.Error("Unwrap should return the cause")
		}
		if !errors.Is(err, cause) {
			t.Error("errors.Is should find the cause through the wrapper")
		}
	})

	t.Run("error with scan id", func(t *testing.T) {
		err := &SimulationError{Code: CodeEngineStopped, Message: "engine stopped", ScanID: "scan-001"}
		expected := "[ENGINE_STOPPED] engine stopped (scan: scan-001)"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})
}

func TestConfigError(t *testing.T) {
	err := ErrConfigInvalid("api.port", 70000)
	if err.Field != "api.port" {
		t.Errorf("Expected field 'api.port', got '%s'", err.Field)
	}
	expected := "[VALIDATION] Invalid configuration value (field: api.port)"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}

	missing := ErrConfigMissing("state.path")
	if missing.Code != CodeConfiguration {
		t.Errorf("Expected code %s, got %s", CodeConfiguration, missing.Code)
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"store error", ErrTemplateNotFound("tmpl-001"), CodeTemplateNotFound},
		{"simulation error", NewSimulationError(CodeTickOverlap, "tick overlap"), CodeTickOverlap},
		{"config error", ErrConfigMissing("x"), CodeConfiguration},
		{"plain error", fmt.Errorf("boom"), CodeUnknown},
		{"nil error", nil, CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := ErrFindingNotFound("f-001")
	if !IsCode(err, CodeFindingNotFound) {
		t.Error("IsCode should match the finding-not-found code")
	}
	if IsCode(err, CodeScanNotFound) {
		t.Error("IsCode should not match a different code")
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := []error{
		ErrScanNotFound("s"),
		ErrTemplateNotFound("t"),
		ErrFindingNotFound("f"),
		NewStoreError(CodeFileNotFound, "file missing", ""),
	}
	for _, err := range notFound {
		if !IsNotFound(err) {
			t.Errorf("IsNotFound should be true for %v", err)
		}
	}

	if IsNotFound(NewSimulationError(CodeCanceled, "canceled")) {
		t.Error("IsNotFound should be false for non-lookup errors")
	}
	if IsNotFound(fmt.Errorf("boom")) {
		t.Error("IsNotFound should be false for plain errors")
	}
}
