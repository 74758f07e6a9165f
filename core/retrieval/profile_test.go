package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsProfileQuery(t *testing.T) {
	cases := []struct {
		query string
		want  bool
	}{
		{"what do you know about me", true},
		{"Tell me about myself", true},
		{"what do i like to eat", true},
		{"what are my preferences for travel", true},
		{"who am I?", true},
		{"what is the capital of France", false},
		{"summarize the meeting notes", false},
		{"remind me tomorrow", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsProfileQuery(tc.query), "query: %q", tc.query)
	}
}

func TestIsProfileFactCandidate(t *testing.T) {
	cases := []struct {
		content string
		want    bool
	}{
		{"i like apples", true},
		{"I prefer tea over coffee", true},
		{"honestly i prefer tea over coffee", true},
		{"these days i live in Prague", true},
		{"I'm a software engineer", true},
		{"my name is Petr", true},
		{"I work at a small studio", true},
		{"the weather is nice today", false},
		{"can you check the calendar", false},
		{"they like apples", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsProfileFactCandidate(tc.content), "content: %q", tc.content)
	}
}
