package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "valid uppercase", input: "DELIVERED", want: StatusDelivered},
		{name: "valid lowercase with spaces", input: " pending ", want: StatusPending},
		{name: "invalid", input: "unknown", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := []Status{StatusDelivered, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%s.IsTerminal() = false, want true", s)
		}
	}

	if StatusPending.IsTerminal() {
		t.Fatal("PENDING.IsTerminal() = true, want false")
	}
}

func TestParseHTTPMethodFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseHTTPMethodFromString(" post ")
	if err != nil {
		t.Fatalf("ParseHTTPMethodFromString() unexpected error = %v", err)
	}
	if got != MethodPost {
		t.Fatalf("ParseHTTPMethodFromString() = %s, want %s", got, MethodPost)
	}

	_, err = ParseHTTPMethodFromString("OPTIONS")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseHTTPMethodFromString() error = %v, want ErrValidation", err)
	}
}

func TestNotificationValidate(t *testing.T) {
	t.Parallel()

	base := Notification{
		VendorName: "generic",
		TargetURL:  "https://example.test/ok",
		HTTPMethod: MethodPost,
	}

	tests := []struct {
		name    string
		mutate  func(*Notification)
		wantErr bool
	}{
		{
			name:   "valid notification",
			mutate: func(n *Notification) {},
		},
		{
			name: "missing vendor name",
			mutate: func(n *Notification) {
				n.VendorName = "  "
			},
			wantErr: true,
		},
		{
			name: "missing target url",
			mutate: func(n *Notification) {
				n.TargetURL = ""
			},
			wantErr: true,
		},
		{
			name: "target url without scheme",
			mutate: func(n *Notification) {
				n.TargetURL = "example.test/ok"
			},
			wantErr: true,
		},
		{
			name: "target url with unsupported scheme",
			mutate: func(n *Notification) {
				n.TargetURL = "ftp://example.test/ok"
			},
			wantErr: true,
		},
		{
			name: "invalid http method",
			mutate: func(n *Notification) {
				n.HTTPMethod = HTTPMethod("CONNECT")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestTruncateResponseBody(t *testing.T) {
	t.Parallel()

	short := "ok"
	if got := TruncateResponseBody(short); got != short {
		t.Fatalf("TruncateResponseBody() = %q, want unchanged %q", got, short)
	}

	long := strings.Repeat("a", MaxResponseBodyLength+50)
	got := TruncateResponseBody(long)
	if !strings.HasSuffix(got, "… [truncated]") {
		t.Fatalf("TruncateResponseBody() = %q, want suffix sentinel", got)
	}
	if len([]rune(got)) > MaxResponseBodyLength+len([]rune("… [truncated]")) {
		t.Fatalf("TruncateResponseBody() length = %d, want capped", len([]rune(got)))
	}
}
