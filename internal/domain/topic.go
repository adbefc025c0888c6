package domain

import "fmt"

// Topic is one of the fixed humanitarian categories the assistant can discuss.
type Topic string

const (
	TopicNone           Topic = ""
	TopicWater          Topic = "water"
	TopicFood           Topic = "food"
	TopicHealth         Topic = "health"
	TopicCO2            Topic = "co2"
	TopicEnergy         Topic = "energy"
	TopicInfrastructure Topic = "infrastructure"
)

var topics = [...]Topic{
	TopicWater,
	TopicFood,
	TopicHealth,
	TopicCO2,
	TopicEnergy,
	TopicInfrastructure,
}

// Topics returns every topic in detection order.
func Topics() []Topic {
	out := make([]Topic, len(topics))
	copy(out, topics[:])
	return out
}

// Valid reports whether t is one of the six known topics.
func (t Topic) Valid() bool {
	for _, known := range topics {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTopic converts a stored value back into a Topic. The empty string is
// TopicNone.
func ParseTopic(s string) (Topic, error) {
	t := Topic(s)
	if t == TopicNone || t.Valid() {
		return t, nil
	}
	return TopicNone, fmt.Errorf("domain: unknown topic %q", s)
}
