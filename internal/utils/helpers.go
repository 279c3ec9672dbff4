package utils

import "strings"

// SliceToSet converts a slice of any comparable type to a set represented by a map[T]struct{}.
func SliceToSet[T comparable](slice []T) map[T]struct{} {
	set := make(map[T]struct{}, len(slice))
	for _, item := range slice {
		set[item] = struct{}{}
	}
	return set
}

// topicLevelReplacer replaces the MQTT separator and wildcards.
var topicLevelReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// TopicLevel makes s usable as a single MQTT topic level.
func TopicLevel(s string) string {
	if s == "" {
		return "_"
	}
	return topicLevelReplacer.Replace(s)
}
