package errors

import (
	"fmt"
	"testing"
)

func TestExecError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ExecError
		want string
	}{
		{
			name: "non-zero exit with stderr",
			err: ExecError{
				Cmd:      "nmcli connection up home-wifi",
				ExitCode: 10,
				Stderr:   "Error: Connection activation failed",
				Err:      fmt.Errorf("exit status 10"),
			},
			want: "nmcli connection up home-wifi: exit status 10: Error: Connection activation failed",
		},
		{
			name: "timeout",
			err: ExecError{
				Cmd:      "nmcli connection up home-wifi",
				ExitCode: -1,
				Err:      ErrTimeout,
			},
			want: "nmcli connection up home-wifi: operation timed out",
		},
		{
			name: "spawn failure",
			err: ExecError{
				Cmd:      "nmcli device show wlan0",
				ExitCode: -1,
				Err:      fmt.Errorf("executable file not found in $PATH"),
			},
			want: "nmcli device show wlan0: executable file not found in $PATH",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecError_Unwrap(t *testing.T) {
	err := &ExecError{Cmd: "ping -c 1 8.8.8.8", ExitCode: -1, Err: ErrTimeout}
	if !Is(err, ErrTimeout) {
		t.Error("should unwrap to ErrTimeout")
	}
}

func TestTransitionError_Format(t *testing.T) {
	inner := fmt.Errorf("activation failed")
	err := WrapTransition("client", "access_point", "monitor", inner)
	want := "transition client -> access_point (monitor): activation failed"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTransitionError_Unwrap(t *testing.T) {
	inner := &ExecError{Cmd: "nmcli connection up hotspot", ExitCode: 4, Err: fmt.Errorf("exit status 4")}
	err := WrapTransition("client", "access_point", "web", inner)

	var ee *ExecError
	if !As(err, &ee) {
		t.Fatal("should unwrap to *ExecError")
	}
	if ee.ExitCode != 4 {
		t.Errorf("ExitCode = %d, want 4", ee.ExitCode)
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "monitor.failure_threshold",
				Value:   0,
				Message: "must be at least 1",
				Hint:    "set monitor.failure_threshold to 3 for the default behaviour",
			},
			want: "config: monitor.failure_threshold=0: must be at least 1\n  hint: set monitor.failure_threshold to 3 for the default behaviour",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "client_profile",
				Message: "required",
			},
			want: "config: client_profile: required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout sentinel", ErrTimeout, KindTimeout},
		{"busy sentinel", ErrBusy, KindBusy},
		{"missing profile sentinel", ErrNoSuchProfile, KindNoSuchProfile},
		{
			"wrapped timeout",
			&ExecError{Cmd: "nmcli", ExitCode: -1, Err: ErrTimeout},
			KindTimeout,
		},
		{
			"non-zero exit",
			&ExecError{Cmd: "nmcli", ExitCode: 10, Err: fmt.Errorf("exit status 10")},
			KindNonZeroExit,
		},
		{
			"missing profile beats exit code",
			fmt.Errorf("%w: %w", ErrNoSuchProfile,
				&ExecError{Cmd: "nmcli", ExitCode: 10, Err: fmt.Errorf("exit status 10")}),
			KindNoSuchProfile,
		},
		{
			"transition wrapper is transparent",
			WrapTransition("client", "access_point", "web", ErrTimeout),
			KindTimeout,
		},
		{"plain error", fmt.Errorf("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	// Verify sentinel errors are distinct.
	sentinels := []error{ErrTimeout, ErrBusy, ErrNoSuchProfile}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
