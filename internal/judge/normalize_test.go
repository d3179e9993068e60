package judge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/judge"
)

func TestDefaultComparatorNormalize(t *testing.T) {
	c := judge.DefaultComparator()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already normal", in: "hello, world!", want: "hello, world!"},
		{name: "trailing newline", in: "hello, world!\n", want: "hello, world!"},
		{name: "leading and trailing space", in: "   42   ", want: "42"},
		{name: "internal runs collapse", in: "1  2\t3\n4", want: "1 2 3 4"},
		{name: "case folds", in: "Hello, World!", want: "hello, world!"},
		{name: "everything at once", in: "  Hello,   WORLD!  \n", want: "hello, world!"},
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: " \n\t ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Normalize(tt.in))
		})
	}
}

// Outputs that differ only in leading/trailing whitespace, internal
// whitespace run length or letter case must compare equal.
func TestComparatorEquivalenceLaw(t *testing.T) {
	c := judge.DefaultComparator()

	pairs := [][2]string{
		{"Hello,  World!\n", "hello, world!"},
		{"[0, 1]", "[0,  1]"},
		{"YES", "yes\n"},
		{"a b c", "  a   b   c  "},
	}
	for _, p := range pairs {
		assert.True(t, c.Equal(p[0], p[1]), "%q should equal %q", p[0], p[1])
	}

	assert.False(t, c.Equal("hello world", "helloworld"), "whitespace presence is semantic")
	assert.False(t, c.Equal("12", "13"))
}

func TestComparatorConfigurableSteps(t *testing.T) {
	caseSensitive := judge.Comparator{TrimSpace: true, CollapseSpace: true}
	assert.False(t, caseSensitive.Equal("Hello", "hello"))
	assert.True(t, caseSensitive.Equal("Hello\n", "Hello"))

	exact := judge.Comparator{}
	assert.False(t, exact.Equal("x\n", "x"))
	assert.True(t, exact.Equal("x", "x"))
}
