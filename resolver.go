package statesync

import "strings"

// resolve decides whether event is meaningful for entity and which value
// handlers receive. Values are read when resolve runs, never cached.
//
//	change, all                      -> relevant, nil
//	reset (collection)               -> relevant, nil
//	change:<attr> (record)           -> relevant, entity.Get(attr)
//	anything else                    -> not relevant
func resolve(entity Entity, event string) (value any, relevant bool) {
	if event == EventChange || event == EventAll {
		return nil, true
	}

	switch entity.Kind() {
	case KindCollection:
		if event == EventReset {
			return nil, true
		}
	case KindRecord:
		attr, ok := strings.CutPrefix(event, EventChange+":")
		if !ok || attr == "" {
			return nil, false
		}
		record, ok := entity.(Record)
		if !ok {
			return nil, false
		}
		return record.Get(attr), true
	}
	return nil, false
}
