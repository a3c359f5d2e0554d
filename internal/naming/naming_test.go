package naming_test

import (
	"testing"

	"github.com/arcyd/arcyd/internal/naming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, scheme := range []string{naming.SchemeClassic, naming.SchemeRBranch} {
		n, err := naming.New(scheme)
		require.NoError(t, err)
		assert.Equal(t, scheme, n.Scheme())
	}

	_, err := naming.New("gerrit")
	require.ErrorIs(t, err, naming.ErrUnknownScheme)
}

func TestClassic_Parse(t *testing.T) {
	n := naming.NewClassic()

	tests := []struct {
		name string
		ref  string
		want naming.ReviewBranch
		ok   bool
	}{
		{"example", "arcyd-review/mywork/master", naming.ReviewBranch{Scheme: "classic", Base: "master", Description: "mywork"}, true},
		{"nested description", "arcyd-review/feature/x/release", naming.ReviewBranch{Scheme: "classic", Base: "release", Description: "feature/x"}, true},
		{"no base", "arcyd-review/mywork", naming.ReviewBranch{}, false},
		{"empty base", "arcyd-review/mywork/", naming.ReviewBranch{}, false},
		{"empty description", "arcyd-review//master", naming.ReviewBranch{}, false},
		{"prefix only", "arcyd-review/", naming.ReviewBranch{}, false},
		{"other prefix", "r/master/mywork", naming.ReviewBranch{}, false},
		{"plain branch", "master", naming.ReviewBranch{}, false},
		{"dotdot", "arcyd-review/a..b/master", naming.ReviewBranch{}, false},
		{"lock suffix", "arcyd-review/mywork/master.lock", naming.ReviewBranch{}, false},
		{"space", "arcyd-review/my work/master", naming.ReviewBranch{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.Parse(tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRBranch_Parse(t *testing.T) {
	n := naming.NewRBranch()

	tests := []struct {
		name string
		ref  string
		want naming.ReviewBranch
		ok   bool
	}{
		{"example", "r/master/mywork", naming.ReviewBranch{Scheme: "rbranch", Base: "master", Description: "mywork"}, true},
		{"other base", "r/release-1.0/fix/crash", naming.ReviewBranch{Scheme: "rbranch", Base: "release-1.0", Description: "fix/crash"}, true},
		{"no description", "r/master", naming.ReviewBranch{}, false},
		{"empty description", "r/master/", naming.ReviewBranch{}, false},
		{"empty base", "r//blah", naming.ReviewBranch{}, false},
		{"trailing slash", "r/master/blah/", naming.ReviewBranch{}, false},
		{"not managed", "feature/blah", naming.ReviewBranch{}, false},
		{"classic", "arcyd-review/mywork/master", naming.ReviewBranch{}, false},
		{"control char", "r/master/bl\x01ah", naming.ReviewBranch{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.Parse(tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	schemes := []naming.Naming{naming.NewClassic(), naming.NewRBranch()}
	refs := map[string][]string{
		naming.SchemeClassic: {"arcyd-review/mywork/master", "arcyd-review/a/b/c/develop", "arcyd-review/x_y-z/v1.2"},
		naming.SchemeRBranch: {"r/master/mywork", "r/develop/a/b/c", "r/v1.2/x_y-z"},
	}

	for _, n := range schemes {
		for _, ref := range append(refs[n.Scheme()], n.Example()) {
			rb, ok := n.Parse(ref)
			require.True(t, ok, ref)

			built, err := n.Build(rb)
			require.NoError(t, err)
			assert.Equal(t, ref, built)

			again, ok := n.Parse(built)
			require.True(t, ok)
			assert.Equal(t, rb, again)
		}
	}
}

func TestBuild_Invalid(t *testing.T) {
	rb, ok := naming.NewRBranch().Parse("r/master/blah")
	require.True(t, ok)

	_, err := naming.NewClassic().Build(rb)
	require.ErrorIs(t, err, naming.ErrInvalidIdentity)

	_, err = naming.NewRBranch().Build(naming.ReviewBranch{Scheme: naming.SchemeRBranch, Base: "a/b", Description: "c"})
	require.ErrorIs(t, err, naming.ErrInvalidIdentity)
}
