package retrieval

import "strings"

// profileTriggers are phrases that mark a query as asking about the
// user themselves rather than about external facts.
var profileTriggers = []string{
	"about me",
	"what do i like",
	"what do you know about me",
	"my preferences",
	"my favorite",
	"my favourite",
	"who am i",
	"what am i",
	"do i like",
	"tell me about myself",
	"remember about me",
}

// factPhrases are first-person fragments that usually carry a durable
// fact about the user. Matched anywhere in the message.
var factPhrases = []string{
	"i am ",
	"i'm ",
	"my name ",
	"i live ",
	"i like ",
	"i love ",
	"i prefer ",
	"my favorite ",
	"my favourite ",
	"my job ",
	"i work ",
}

// IsProfileQuery reports whether a query is asking about the user's own
// identity, preferences, or history. Matches a trigger phrase, or the
// combination of a first-person possessive with a question word.
func IsProfileQuery(query string) bool {
	lowered := strings.ToLower(query)
	for _, trigger := range profileTriggers {
		if strings.Contains(lowered, trigger) {
			return true
		}
	}
	firstPerson := strings.Contains(lowered, " my ") ||
		strings.HasPrefix(lowered, "my ") ||
		strings.Contains(lowered, " me ") ||
		strings.HasSuffix(strings.TrimRight(lowered, "?!. "), " me")
	question := strings.Contains(lowered, "what") ||
		strings.Contains(lowered, "who") ||
		strings.Contains(lowered, "which") ||
		strings.Contains(lowered, "do you know")
	return firstPerson && question
}

// IsProfileFactCandidate reports whether a user message states a fact
// about the user worth surfacing for a profile query. The phrase may
// sit anywhere in the text, not just at the start.
func IsProfileFactCandidate(content string) bool {
	lowered := strings.ToLower(content)
	for _, phrase := range factPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
