package agents

import (
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
)

// Fields shared by every agent. A sub-agent embedded in the supervisor sees
// the supervisor's values for the fields they have in common.
var (
	Messages  = graph.AppendField[model.Message]("messages")
	Timestamp = graph.ReplaceField[time.Time]("timestamp")
	Context   = graph.ReplaceField[map[string]any]("context")
	Next      = graph.ReplaceField[string]("next")
)

// decodeArgs decodes tool call arguments into out. Model arguments arrive as
// JSON values, so numbers are float64 and are weakly converted.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

func lastMessage(msgs []model.Message) (model.Message, bool) {
	if len(msgs) == 0 {
		return model.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

func toList(msgs ...model.Message) []model.Message {
	return msgs
}
