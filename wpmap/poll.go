package wpmap

import (
	"regexp"
	"sort"
	"strconv"
)

// MetaRow is one flat key/value pair from the source postmeta table,
// pre-filtered by the reader to the poll-relevant keys.
type MetaRow struct {
	PostID int64
	Key    string
	Value  string
}

// PollOption is a parsed poll answer. Counter is the legacy explicit
// display-order field; Index is the position in the flattened meta keys and
// serves as tiebreak and fallback.
type PollOption struct {
	Index   int
	Counter int
	Text    string
}

// Poll is the structured form of one post's poll metadata.
type Poll struct {
	Question string
	Options  []PollOption
}

var (
	answerKey  = regexp.MustCompile(`^answers_(\d+)_answer$`)
	counterKey = regexp.MustCompile(`^answers_(\d+)_counter$`)
)

// ParsePollMeta reassembles scattered question / answers_<i>_answer /
// answers_<i>_counter rows into one Poll per post. Indices need not be
// contiguous. Options with empty text are dropped; the survivors are
// sorted by (counter, index) ascending. A missing or non-positive counter
// falls back to index+1, preserving array order for unannotated polls.
func ParsePollMeta(rows []MetaRow) map[int64]Poll {
	type building struct {
		question string
		options  map[int]*PollOption
	}

	polls := map[int64]*building{}
	get := func(postID int64) *building {
		b := polls[postID]
		if b == nil {
			b = &building{options: map[int]*PollOption{}}
			polls[postID] = b
		}
		return b
	}
	option := func(b *building, index int) *PollOption {
		o := b.options[index]
		if o == nil {
			o = &PollOption{Index: index, Counter: index + 1}
			b.options[index] = o
		}
		return o
	}

	for _, row := range rows {
		if row.PostID == 0 {
			continue
		}
		value := SanitizeText(row.Value)

		if row.Key == "question" {
			get(row.PostID).question = value
			continue
		}
		if m := answerKey.FindStringSubmatch(row.Key); m != nil {
			index, _ := strconv.Atoi(m[1])
			option(get(row.PostID), index).Text = value
			continue
		}
		if m := counterKey.FindStringSubmatch(row.Key); m != nil {
			index, _ := strconv.Atoi(m[1])
			o := option(get(row.PostID), index)
			if counter, err := strconv.Atoi(value); err == nil && counter > 0 {
				o.Counter = counter
			} else {
				o.Counter = index + 1
			}
		}
	}

	out := make(map[int64]Poll, len(polls))
	for postID, b := range polls {
		options := make([]PollOption, 0, len(b.options))
		for _, o := range b.options {
			if o.Text != "" {
				options = append(options, *o)
			}
		}
		sort.Slice(options, func(i, j int) bool {
			if options[i].Counter == options[j].Counter {
				return options[i].Index < options[j].Index
			}
			return options[i].Counter < options[j].Counter
		})
		out[postID] = Poll{Question: b.question, Options: options}
	}
	return out
}
