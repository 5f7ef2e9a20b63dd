// version.go: Semantic version parsing and range evaluation
//
// Versions are compared numerically on major.minor.patch; prerelease
// identifiers order below the corresponding release and build metadata is
// ignored. Range expressions are disjunctions (|| or |) of conjunctions
// (&, &&, comma or whitespace) of comparators.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"regexp"
	"strconv"
	"strings"
)

// AnyVersion is the wildcard range accepted by every version.
const AnyVersion = "*"

// Version represents a semantic version with comparison capabilities.
//
// Example usage:
//
//	v, err := ParseVersion("1.4.0-rc.1")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(v.Major, v.Minor, v.Patch, v.Prerelease) // 1 4 0 rc.1
type Version struct {
	Major      uint64 `json:"major"`
	Minor      uint64 `json:"minor"`
	Patch      uint64 `json:"patch"`
	Prerelease string `json:"prerelease,omitempty"`
	Build      string `json:"build,omitempty"`
	Original   string `json:"original"`

	// components is how many numeric parts were written (1 to 3).
	components int
}

// ParseVersion parses [v]MAJOR[.MINOR[.PATCH]][-PRERELEASE][+BUILD].
// Missing minor and patch components are zero.
func ParseVersion(versionStr string) (*Version, error) {
	s := strings.TrimSpace(versionStr)
	if s == "" {
		return nil, NewInvalidVersionError(versionStr, nil)
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "v"), "V")

	v := &Version{Original: versionStr}

	if idx := strings.IndexByte(s, '+'); idx >= 0 {
		v.Build = s[idx+1:]
		s = s[:idx]
		if !validIdentifiers(v.Build) {
			return nil, NewInvalidVersionError(versionStr, nil)
		}
	}
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		v.Prerelease = s[idx+1:]
		s = s[:idx]
		if !validIdentifiers(v.Prerelease) {
			return nil, NewInvalidVersionError(versionStr, nil)
		}
	}

	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return nil, NewInvalidVersionError(versionStr, nil)
	}
	targets := []*uint64{&v.Major, &v.Minor, &v.Patch}
	for i, part := range parts {
		value, err := parseVersionComponent(part)
		if err != nil {
			return nil, NewInvalidVersionError(versionStr, err)
		}
		*targets[i] = value
	}
	v.components = len(parts)
	return v, nil
}

// MustParseVersion is like ParseVersion but panics on malformed input.
func MustParseVersion(versionStr string) *Version {
	v, err := ParseVersion(versionStr)
	if err != nil {
		panic(err)
	}
	return v
}

func parseVersionComponent(component string) (uint64, error) {
	if component == "" {
		return 0, strconv.ErrSyntax
	}
	for _, r := range component {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseUint(component, 10, 64)
}

func validIdentifiers(s string) bool {
	if s == "" {
		return false
	}
	for _, id := range strings.Split(s, ".") {
		if id == "" {
			return false
		}
		for _, r := range id {
			if !(r == '-' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
				return false
			}
		}
	}
	return true
}

// String renders the normalized MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD] form.
func (v *Version) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(v.Major, 10))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(v.Minor, 10))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(v.Patch, 10))
	if v.Prerelease != "" {
		b.WriteByte('-')
		b.WriteString(v.Prerelease)
	}
	if v.Build != "" {
		b.WriteByte('+')
		b.WriteString(v.Build)
	}
	return b.String()
}

// Compare compares two versions. Returns -1, 0, or 1.
func (v *Version) Compare(other *Version) int {
	if result := compareComponent(v.Major, other.Major); result != 0 {
		return result
	}
	if result := compareComponent(v.Minor, other.Minor); result != 0 {
		return result
	}
	if result := compareComponent(v.Patch, other.Patch); result != 0 {
		return result
	}
	return comparePrerelease(v.Prerelease, other.Prerelease)
}

func compareComponent(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// comparePrerelease orders identifiers the semver way: a release sorts after
// any prerelease, numeric identifiers compare by value and below alphanumeric ones.
func comparePrerelease(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return 1
	}
	if b == "" {
		return -1
	}

	left, right := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(left) && i < len(right); i++ {
		ln, lerr := strconv.ParseUint(left[i], 10, 64)
		rn, rerr := strconv.ParseUint(right[i], 10, 64)
		switch {
		case lerr == nil && rerr == nil:
			if c := compareComponent(ln, rn); c != 0 {
				return c
			}
		case lerr == nil:
			return -1
		case rerr == nil:
			return 1
		default:
			if c := strings.Compare(left[i], right[i]); c != 0 {
				return c
			}
		}
	}
	return compareComponent(uint64(len(left)), uint64(len(right)))
}

type rangeOp int

const (
	opAny rangeOp = iota
	opBare
	opEQ
	opNE
	opGT
	opGTE
	opLT
	opLTE
)

type comparator struct {
	op      rangeOp
	version *Version
}

func (c comparator) matches(v *Version, exactBare bool) bool {
	if c.op == opAny {
		return true
	}
	cmp := v.Compare(c.version)
	switch c.op {
	case opBare:
		if exactBare {
			return cmp == 0
		}
		return cmp >= 0
	case opEQ:
		return cmp == 0
	case opNE:
		return cmp != 0
	case opGT:
		return cmp > 0
	case opGTE:
		return cmp >= 0
	case opLT:
		return cmp < 0
	case opLTE:
		return cmp <= 0
	}
	return false
}

// Constraint is a parsed version range expression.
type Constraint struct {
	raw          string
	alternatives [][]comparator
}

var (
	operatorSpacing = regexp.MustCompile(`(>=|<=|!=|==|>|<|=|\^|~)\s+`)
	operatorPrefix  = []struct {
		text string
		op   rangeOp
	}{
		{">=", opGTE}, {"<=", opLTE}, {"!=", opNE}, {"==", opEQ},
		{">", opGT}, {"<", opLT}, {"=", opEQ},
	}
)

// ParseConstraint parses a version range expression.
//
// Supported comparators: *, x, empty, >, >=, <, <=, =, ==, !=, ^1.2.3,
// ~1.2.3, x-ranges such as 1.x or 1.2.*, and bare versions. A bare version
// is kept distinct so the caller can decide between exact and minimum
// semantics at evaluation time.
func ParseConstraint(constraint string) (*Constraint, error) {
	c := &Constraint{raw: constraint}
	trimmed := strings.TrimSpace(constraint)
	if trimmed == "" || trimmed == AnyVersion {
		c.alternatives = [][]comparator{{{op: opAny}}}
		return c, nil
	}

	normalized := strings.ReplaceAll(trimmed, "||", "|")
	normalized = strings.ReplaceAll(normalized, "&&", "&")
	normalized = operatorSpacing.ReplaceAllString(normalized, "$1")

	for _, alt := range strings.Split(normalized, "|") {
		tokens := strings.FieldsFunc(alt, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ',' || r == '&'
		})
		if len(tokens) == 0 {
			return nil, NewInvalidConstraintError(constraint, "empty range alternative")
		}
		var conj []comparator
		for _, tok := range tokens {
			parsed, err := parseComparator(constraint, tok)
			if err != nil {
				return nil, err
			}
			conj = append(conj, parsed...)
		}
		c.alternatives = append(c.alternatives, conj)
	}
	return c, nil
}

func parseComparator(constraint, token string) ([]comparator, error) {
	switch {
	case strings.HasPrefix(token, "^"):
		return boundedRange(constraint, token[1:], caretUpper)
	case strings.HasPrefix(token, "~"):
		return boundedRange(constraint, token[1:], tildeUpper)
	}

	op, rest := opBare, token
	for _, p := range operatorPrefix {
		if strings.HasPrefix(token, p.text) {
			op, rest = p.op, token[len(p.text):]
			break
		}
	}
	if rest == "" {
		return nil, NewInvalidConstraintError(constraint, "operator "+token+" has no version")
	}

	if isWildcard(rest) {
		if op == opBare || op == opEQ || op == opGTE || op == opLTE {
			return []comparator{{op: opAny}}, nil
		}
		return nil, NewInvalidConstraintError(constraint, "wildcard cannot be combined with "+token)
	}

	if prefix, wild := splitXRange(rest); wild {
		lower, err := ParseVersion(prefix)
		if err != nil {
			return nil, NewInvalidConstraintError(constraint, "malformed version in "+token)
		}
		upper := xRangeUpper(lower)
		switch op {
		case opBare, opEQ:
			return []comparator{{op: opGTE, version: lower}, {op: opLT, version: upper}}, nil
		case opGTE, opLT:
			return []comparator{{op: op, version: lower}}, nil
		case opGT:
			// above the whole range: the first release after it
			release := *upper
			release.Prerelease = ""
			return []comparator{{op: opGTE, version: &release}}, nil
		case opLTE:
			return []comparator{{op: opLT, version: upper}}, nil
		default:
			return nil, NewInvalidConstraintError(constraint, "x-range cannot be combined with "+token)
		}
	}

	v, err := ParseVersion(rest)
	if err != nil {
		return nil, NewInvalidConstraintError(constraint, "malformed version in "+token)
	}
	return []comparator{{op: op, version: v}}, nil
}

func isWildcard(s string) bool {
	return s == "*" || s == "x" || s == "X"
}

// splitXRange turns "1.2.x" into ("1.2", true).
func splitXRange(s string) (string, bool) {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		if isWildcard(p) {
			if i == 0 {
				return "", false
			}
			return strings.Join(parts[:i], "."), true
		}
	}
	return s, false
}

func boundedRange(constraint, rest string, upperFn func(*Version) *Version) ([]comparator, error) {
	if prefix, wild := splitXRange(rest); wild {
		rest = prefix
	}
	lower, err := ParseVersion(rest)
	if err != nil {
		return nil, NewInvalidConstraintError(constraint, "malformed version in range "+rest)
	}
	return []comparator{{op: opGTE, version: lower}, {op: opLT, version: upperFn(lower)}}, nil
}

// lowest possible prerelease, so 2.0.0-alpha does not slip under "< 2.0.0"
const floorPrerelease = "0"

func caretUpper(v *Version) *Version {
	switch {
	case v.Major > 0 || v.components == 1:
		return &Version{Major: v.Major + 1, Prerelease: floorPrerelease, components: 3}
	case v.Minor > 0 || v.components == 2:
		return &Version{Minor: v.Minor + 1, Prerelease: floorPrerelease, components: 3}
	default:
		return &Version{Patch: v.Patch + 1, Prerelease: floorPrerelease, components: 3}
	}
}

func tildeUpper(v *Version) *Version {
	if v.components == 1 {
		return &Version{Major: v.Major + 1, Prerelease: floorPrerelease, components: 3}
	}
	return &Version{Major: v.Major, Minor: v.Minor + 1, Prerelease: floorPrerelease, components: 3}
}

func xRangeUpper(v *Version) *Version {
	if v.components == 1 {
		return &Version{Major: v.Major + 1, Prerelease: floorPrerelease, components: 3}
	}
	return &Version{Major: v.Major, Minor: v.Minor + 1, Prerelease: floorPrerelease, components: 3}
}

// Check evaluates the constraint. exactBare selects strict equality for bare
// versions instead of the default minimum-version reading.
func (c *Constraint) Check(v *Version, exactBare bool) bool {
	for _, conj := range c.alternatives {
		ok := true
		for _, cmp := range conj {
			if !cmp.matches(v, exactBare) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// String returns the expression as originally written.
func (c *Constraint) String() string {
	return c.raw
}

// VersionManager evaluates versions against ranges under a fixed policy.
//
// With ExactVersionAllowed false (the default), a bare version such as
// "1.2.3" in a range means ">=1.2.3". Setting it to true makes a bare
// version an exact pin.
type VersionManager struct {
	ExactVersionAllowed bool
}

// NewVersionManager creates a version manager with the given bare-version policy.
func NewVersionManager(exactVersionAllowed bool) *VersionManager {
	return &VersionManager{ExactVersionAllowed: exactVersionAllowed}
}

// Compare parses and compares two versions. Returns -1, 0, or 1.
func (vm *VersionManager) Compare(v1, v2 string) (int, error) {
	a, err := ParseVersion(v1)
	if err != nil {
		return 0, err
	}
	b, err := ParseVersion(v2)
	if err != nil {
		return 0, err
	}
	return a.Compare(b), nil
}

// Satisfies reports whether version is inside the range expression.
// An empty or "*" constraint accepts anything, including unparsable versions.
func (vm *VersionManager) Satisfies(version, constraint string) (bool, error) {
	if trimmed := strings.TrimSpace(constraint); trimmed == "" || trimmed == AnyVersion {
		return true, nil
	}
	c, err := ParseConstraint(constraint)
	if err != nil {
		return false, err
	}
	v, err := ParseVersion(version)
	if err != nil {
		return false, err
	}
	return c.Check(v, vm.ExactVersionAllowed), nil
}

// IsStable reports whether version has no prerelease qualifier.
func (vm *VersionManager) IsStable(version string) (bool, error) {
	v, err := ParseVersion(version)
	if err != nil {
		return false, err
	}
	return v.Prerelease == "", nil
}
