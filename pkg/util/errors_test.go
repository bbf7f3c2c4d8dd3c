package util

import (
	"errors"
	"strings"
	"testing"
)

func TestPreconditionError(t *testing.T) {
	err := NewPreconditionError("vlan_link_bridge", "Vpn:v1", "link must be up")

	msg := err.Error()
	if !strings.Contains(msg, "vlan_link_bridge") {
		t.Errorf("Error message should contain operation: %s", msg)
	}
	if !strings.Contains(msg, "Vpn:v1") {
		t.Errorf("Error message should contain entity: %s", msg)
	}
	if !strings.Contains(msg, "link must be up") {
		t.Errorf("Error message should contain precondition: %s", msg)
	}

	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("PreconditionError should unwrap to ErrPreconditionFailed")
	}
}

func TestCommandError(t *testing.T) {
	base := errors.New("exit status 2")
	err := &CommandError{
		Name:     "ip",
		Args:     []string{"link", "add", "link", "veth0", "name", "veth0.100", "type", "vlan", "id", "100"},
		ExitCode: 2,
		Output:   "RTNETLINK answers: File exists",
		Err:      base,
	}

	msg := err.Error()
	if !strings.Contains(msg, "ip") {
		t.Errorf("Error message should contain command name: %s", msg)
	}
	if !strings.Contains(msg, "File exists") {
		t.Errorf("Error message should contain captured output: %s", msg)
	}

	if !errors.Is(err, base) {
		t.Errorf("CommandError should unwrap to the underlying error")
	}
}

func TestCommandErrorNoOutput(t *testing.T) {
	err := &CommandError{Name: "brctl", ExitCode: 1, Err: errors.New("exit status 1")}
	msg := err.Error()
	if strings.Contains(msg, "output:") {
		t.Errorf("Error message should omit the output section when empty: %s", msg)
	}
}
