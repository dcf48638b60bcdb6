package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("COURIER_TEST_VAR", "hello")
	t.Setenv("COURIER_EMPTY_VAR", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set var", "value: ${COURIER_TEST_VAR}", "value: hello"},
		{"unset var", "value: ${COURIER_UNSET_12345}", "value: "},
		{"default when unset", "value: ${COURIER_UNSET_12345:-fallback}", "value: fallback"},
		{"default ignored when set", "value: ${COURIER_TEST_VAR:-fallback}", "value: hello"},
		{"default when empty", "value: ${COURIER_EMPTY_VAR:-fallback}", "value: fallback"},
		{"multiple", "${COURIER_TEST_VAR}-${COURIER_TEST_VAR}", "hello-hello"},
		{"no vars", "plain: text", "plain: text"},
		{"escaped", "message: $${COURIER_TEST_VAR}", "message: ${COURIER_TEST_VAR}"},
		{"escaped with default", "$${id:-0}", "${id:-0}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
