package bgg

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   OutcomeClass
	}{
		{200, ClassSuccess},
		{202, ClassPending},
		{429, ClassRateLimited},
		{401, ClassAuthError},
		{403, ClassAuthError},
		{500, ClassServerError},
		{502, ClassServerError},
		{599, ClassServerError},
		{404, ClassOther},
		{301, ClassOther},
		{418, ClassOther},
	}
	for _, tt := range tests {
		if got := Classify(tt.status); got != tt.want {
			t.Errorf("Classify(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestOutcomeClassString(t *testing.T) {
	tests := []struct {
		class OutcomeClass
		want  string
	}{
		{ClassSuccess, "success"},
		{ClassPending, "pending"},
		{ClassRateLimited, "rate_limited"},
		{ClassAuthError, "auth_error"},
		{ClassServerError, "server_error"},
		{ClassOther, "other"},
		{OutcomeClass(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.class.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
