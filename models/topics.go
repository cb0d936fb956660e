package models

// AllowedTopics is the fixed set of topics a debate can be filed under.
var AllowedTopics = []string{
	"politics",
	"economics",
	"technology",
	"science",
	"philosophy",
	"ethics",
	"environment",
	"health",
	"education",
	"culture",
	"law",
	"history",
	"religion",
	"sports",
	"international-relations",
}

var allowedTopicSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(AllowedTopics))
	for _, t := range AllowedTopics {
		set[t] = struct{}{}
	}
	return set
}()

// IsAllowedTopic reports whether topic is one of AllowedTopics.
func IsAllowedTopic(topic string) bool {
	_, ok := allowedTopicSet[topic]
	return ok
}
