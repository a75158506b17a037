package env_vars

import (
	"testing"

	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
	"github.com/specialistvlad/nodeflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvVar(t *testing.T) {
	logger, _ := testutil.NewLogger(t)
	ctx, _ := testutil.Context(t)

	env := map[string]string{"HOME_BASE": "spawn"}
	r := registry.New(logger)
	r.RegisterModules(&Module{Lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}})
	def, ok := r.Get(TypeEnvVar)
	require.True(t, ok)

	testCases := []struct {
		name    string
		data    map[string]any
		pin     string
		want    any
		wantErr bool
	}{
		{name: "set", data: map[string]any{"name": "HOME_BASE"}, pin: "value", want: "spawn"},
		{name: "present", data: map[string]any{"name": "HOME_BASE"}, pin: "present", want: true},
		{name: "missing uses default", data: map[string]any{"name": "NOPE", "default": "x"}, pin: "value", want: "x"},
		{name: "missing", data: map[string]any{"name": "NOPE"}, pin: "present", want: false},
		{name: "no name", data: map[string]any{}, pin: "value", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := def.Evaluate(ctx, &graph.Node{ID: "env", Type: TypeEnvVar, Data: tc.data}, tc.pin, &testutil.Helpers{})
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
