// version_test.go: tests for version parsing and range evaluation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"testing"

	"github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input      string
		major      uint64
		minor      uint64
		patch      uint64
		prerelease string
		build      string
		normalized string
	}{
		{"1.2.3", 1, 2, 3, "", "", "1.2.3"},
		{"v2.0.1", 2, 0, 1, "", "", "2.0.1"},
		{"1", 1, 0, 0, "", "", "1.0.0"},
		{"1.4", 1, 4, 0, "", "", "1.4.0"},
		{"1.4.0-rc.1", 1, 4, 0, "rc.1", "", "1.4.0-rc.1"},
		{"3.1.4+build.77", 3, 1, 4, "", "build.77", "3.1.4+build.77"},
		{" 0.9.0-alpha+exp.sha.5114f85 ", 0, 9, 0, "alpha", "exp.sha.5114f85", "0.9.0-alpha+exp.sha.5114f85"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := ParseVersion(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.major, v.Major)
			assert.Equal(t, tt.minor, v.Minor)
			assert.Equal(t, tt.patch, v.Patch)
			assert.Equal(t, tt.prerelease, v.Prerelease)
			assert.Equal(t, tt.build, v.Build)
			assert.Equal(t, tt.normalized, v.String())
		})
	}
}

func TestParseVersion_Malformed(t *testing.T) {
	for _, input := range []string{"", "  ", "1.2.3.4", "a.b.c", "1..2", "1.2.x", "1.2.3-", "1.2.3+", "1.2.3-rc..1", "-1.0.0", "1.2.3-r@c"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseVersion(input)
			require.Error(t, err)
			if !HasErrorCode(err, ErrCodeInvalidVersion) {
				t.Errorf("expected %s, got %v", ErrCodeInvalidVersion, err)
			}
		})
	}
}

func TestVersionCompare(t *testing.T) {
	vm := NewVersionManager(false)
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"2.1.0", "2.0.9", 1},
		{"1.10.0", "1.9.0", 1},
		{"1", "1.0.0", 0},
		{"1.0.0-alpha", "1.0.0", -1},
		{"1.0.0-alpha", "1.0.0-alpha.1", -1},
		{"1.0.0-alpha.1", "1.0.0-alpha.beta", -1},
		{"1.0.0-beta.2", "1.0.0-beta.11", -1},
		{"1.0.0-rc.1", "1.0.0-beta.11", 1},
		{"1.0.0+build.1", "1.0.0+build.2", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			got, err := vm.Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			reverse, err := vm.Compare(tt.b, tt.a)
			require.NoError(t, err)
			assert.Equal(t, -tt.want, reverse)
		})
	}

	_, err := vm.Compare("1.0", "oops")
	assert.Error(t, err)
}

func TestSatisfies(t *testing.T) {
	vm := NewVersionManager(false)
	tests := []struct {
		version    string
		constraint string
		want       bool
	}{
		{"1.2.3", "*", true},
		{"0.0.1", "", true},
		{"1.2.3", ">=1.2.3", true},
		{"1.2.2", ">=1.2.3", false},
		{"1.2.3", ">1.2.3", false},
		{"1.2.4", "> 1.2.3", true},
		{"1.9.9", "<2.0.0", true},
		{"2.0.0", "<2.0.0", false},
		{"2.0.0", "<=2.0.0", true},
		{"1.5.0", ">=1.0 & <2.0", true},
		{"1.5.0", ">=1.0 && <2.0", true},
		{"1.5.0", ">=1.0, <1.4", false},
		{"1.5.0", ">=1.0 <1.4", false},
		{"3.1.0", "<2.0 || >=3.0", true},
		{"2.5.0", "<2.0 | >=3.0", false},
		{"1.9.0", "^1.2.0", true},
		{"2.0.0", "^1.2.0", false},
		{"2.0.0-alpha", "^1.2.0", false},
		{"0.2.5", "^0.2.1", true},
		{"0.3.0", "^0.2.1", false},
		{"1.2.9", "~1.2.0", true},
		{"1.3.0", "~1.2.0", false},
		{"1.7.0", "1.x", true},
		{"2.0.0", "1.x", false},
		{"1.2.7", "1.2.*", true},
		{"1.3.0", "1.2.*", false},
		{"1.5.0", ">1.x", false},
		{"2.0.0", ">1.x", true},
		{"2.0.0-beta", ">1.x", false},
		{"1.2.9", ">1.2.x", false},
		{"1.3.0", ">1.2.x", true},
		{"1.9.9", "<=1.x", true},
		{"2.0.0", "<=1.x", false},
		{"2.0.0-alpha", "<=1.x", false},
		{"1.0.0", ">=1.x", true},
		{"0.9.0", ">=1.x", false},
		{"0.9.0", "<1.x", true},
		{"1.0.0", "<1.x", false},
		{"1.2.3", "!=1.2.3", false},
		{"1.2.4", "!=1.2.3", true},
		{"1.2.3", "=1.2.3", true},
		{"1.2.3", "==1.2.4", false},
		{"1.5.0", "1.2.3", true},
		{"1.2.0", "1.2.3", false},
	}
	for _, tt := range tests {
		t.Run(tt.version+"_"+tt.constraint, func(t *testing.T) {
			got, err := vm.Satisfies(tt.version, tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSatisfies_ExactVersionPolicy(t *testing.T) {
	minimum := NewVersionManager(false)
	exact := NewVersionManager(true)

	ok, err := minimum.Satisfies("1.3.0", "1.2.3")
	require.NoError(t, err)
	assert.True(t, ok, "bare version means >= by default")

	ok, err = exact.Satisfies("1.3.0", "1.2.3")
	require.NoError(t, err)
	assert.False(t, ok, "bare version is a pin when exact versions are allowed")

	ok, err = exact.Satisfies("1.2.3", "1.2.3")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = exact.Satisfies("1.3.0", ">=1.2.3")
	require.NoError(t, err)
	assert.True(t, ok, "explicit operators are unaffected by the policy")
}

func TestSatisfies_WildcardAcceptsAnything(t *testing.T) {
	vm := NewVersionManager(true)
	for _, v := range []string{"0.0.0", "1.2.3", "99.0.0-rc.1", "not-a-version"} {
		ok, err := vm.Satisfies(v, "*")
		require.NoError(t, err)
		assert.True(t, ok, v)
	}
}

func TestSatisfies_MalformedInput(t *testing.T) {
	vm := NewVersionManager(false)

	_, err := vm.Satisfies("1.0.0", ">=")
	require.Error(t, err)
	if !HasErrorCode(err, ErrCodeInvalidConstraint) {
		t.Errorf("expected %s, got %v", ErrCodeInvalidConstraint, err)
	}

	_, err = vm.Satisfies("1.0.0", ">=abc")
	assert.True(t, HasErrorCode(err, ErrCodeInvalidConstraint))

	_, err = vm.Satisfies("1.0.0", ">=1.0 ||")
	assert.True(t, HasErrorCode(err, ErrCodeInvalidConstraint))

	_, err = vm.Satisfies("1.0.0", ">*")
	assert.True(t, HasErrorCode(err, ErrCodeInvalidConstraint))

	_, err = vm.Satisfies("1.0.0", "!=1.x")
	assert.True(t, HasErrorCode(err, ErrCodeInvalidConstraint))

	_, err = vm.Satisfies("one", ">=1.0")
	require.Error(t, err)
	var hostErr *errors.Error
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, errors.ErrorCode(ErrCodeInvalidVersion), hostErr.ErrorCode())
}

func TestParseConstraint_String(t *testing.T) {
	c, err := ParseConstraint(">= 1.0, < 2.0")
	require.NoError(t, err)
	assert.Equal(t, ">= 1.0, < 2.0", c.String())
	assert.True(t, c.Check(MustParseVersion("1.5.0"), false))
	assert.False(t, c.Check(MustParseVersion("2.0.0"), false))
}

func TestIsStable(t *testing.T) {
	vm := NewVersionManager(false)

	stable, err := vm.IsStable("1.0.0+build.5")
	require.NoError(t, err)
	assert.True(t, stable)

	stable, err = vm.IsStable("1.0.0-rc.2")
	require.NoError(t, err)
	assert.False(t, stable)
}

func TestMustParseVersion_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseVersion("x.y.z") })
}
