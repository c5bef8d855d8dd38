package loxlog

import (
	"os"
	"testing"

	"github.com/op/go-logging"
)

func TestSetup_ReturnsUsableLogger(t *testing.T) {
	log := Setup("lox-test", logging.ERROR)
	if log == nil {
		t.Fatal("expected a non-nil logger")
	}
	// Must not panic regardless of the configured level.
	log.Debugf("probe %d", 1)
}

func TestSetup_EnvOverridesDefaultLevel(t *testing.T) {
	os.Setenv("LOX_LOG_LEVEL", "DEBUG")
	defer os.Unsetenv("LOX_LOG_LEVEL")

	log := Setup("lox-test-env", logging.ERROR)
	if log == nil {
		t.Fatal("expected a non-nil logger")
	}
	if got := logging.GetLevel("lox-test-env"); got != logging.DEBUG {
		t.Errorf("LOX_LOG_LEVEL=DEBUG should override the ERROR default, got %v", got)
	}
}
