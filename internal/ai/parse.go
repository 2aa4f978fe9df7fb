package ai

import "strings"

func parseClassification(output string) *Classification {
	res := &Classification{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*"))
		switch {
		case hasLabel(line, "SUBJECT:"):
			res.Subject = labelValue(line, "SUBJECT:")
		case hasLabel(line, "TOPIC:"):
			res.Topic = labelValue(line, "TOPIC:")
		case hasLabel(line, "CHAPTER:"):
			res.Chapter = labelValue(line, "CHAPTER:")
		}
	}
	return res
}

func hasLabel(line, label string) bool {
	return len(line) >= len(label) && strings.EqualFold(line[:len(label)], label)
}

func labelValue(line, label string) *string {
	v := strings.TrimSpace(strings.Trim(strings.TrimSpace(line[len(label):]), "*"))
	if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "none") {
		return nil
	}
	return &v
}
