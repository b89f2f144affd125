package discovery

import "strings"

// ResolveTopicBase removes the reserved "~" key and substitutes its value
// into every *_topic field that starts or ends with "~".
//
// It expects canonical keys, so it must run after ExpandAbbreviations.
// A config without a base topic is returned unchanged.
func ResolveTopicBase(cfg Config) Config {
	raw, ok := cfg[TopicBaseKey]
	if !ok {
		return cfg
	}

	out := cfg.Clone()
	delete(out, TopicBaseKey)

	base, ok := raw.Str()
	if !ok {
		return out
	}

	for key, value := range out {
		if !strings.HasSuffix(key, topicSuffix) {
			continue
		}
		topic, isStr := value.Str()
		if !isStr || topic == "" {
			continue
		}
		if resolved, changed := substituteBase(topic, base); changed {
			out[key] = String(resolved)
		}
	}
	return out
}

func substituteBase(topic, base string) (string, bool) {
	placeholder := TopicBaseKey
	leading := strings.HasPrefix(topic, placeholder)
	trailing := len(topic) > len(placeholder) && strings.HasSuffix(topic, placeholder)
	if !leading && !trailing {
		return topic, false
	}

	resolved := topic
	if trailing {
		resolved = resolved[:len(resolved)-len(placeholder)] + base
	}
	if leading {
		resolved = base + resolved[len(placeholder):]
	}
	return resolved, true
}
