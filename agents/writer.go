package agents

import (
	"context"
	"strings"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
	"github.com/dshills/langgraph-agents/graph/ui"
)

var writerSchema = graph.MustSchema(WriterAgent, Messages, Context)

var draftTool = model.ToolSpec{
	Name:        "draft_text_document",
	Description: "Prepare a text document for the user with a short title and short description for browsing purposes.",
	Schema: objectSchema(map[string]any{
		"title":       stringProp("Title of the document"),
		"description": stringProp("Description of the document"),
	}, "title", "description"),
}

const writerPrompt = "Write a text document based on the user's request. Only output the content, do not ask any additional questions."

// NewWriter compiles the writer agent. prepare announces a document, writer
// fills it in by re-pushing the same UI component as the text grows, and
// suggestions closes the tool call and lets the model follow up.
func NewWriter(deps Deps) (*graph.CompiledGraph, error) {
	deps = deps.withDefaults()
	m := deps.modelFor(WriterAgent)

	prepare := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		var msgs []model.Message
		if sel := selectedText(s); sel != "" {
			msgs = append(msgs, model.User("Selected text in question: "+sel))
		}
		msgs = append(msgs, Messages.Get(s)...)

		out, err := m.Chat(ctx, msgs, []model.ToolSpec{draftTool})
		if err != nil {
			return graph.Fail(err)
		}
		response := deps.reply(out)
		docID := deps.NewID()
		for _, tc := range out.ToolCalls {
			if tc.Name != draftTool.Name {
				continue
			}
			props := map[string]any{"is_generating": true}
			for k, v := range tc.Input {
				props[k] = v
			}
			ui.Push(ctx, ui.Event{ID: docID, Name: "writer", Props: props}.ForMessage(response.ID))
		}
		return graph.Continue(Messages.Set(toList(response)))
	})

	write := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		history := Messages.Get(s)
		last, ok := lastMessage(history)
		if !ok {
			return graph.Continue(nil)
		}
		doc, ok := lastComponent(ui.FromContext(ctx).Events(), "writer", last.ID)
		if !ok {
			return graph.Continue(nil)
		}

		prompt := writerPrompt
		if sel := selectedText(s); sel != "" {
			prompt += "\n\nSelected text in question: " + sel
		}
		out, err := m.Chat(ctx, withSystem(prompt, history[:len(history)-1]), nil)
		if err != nil {
			return graph.Fail(err)
		}

		props := func(content string, generating bool) map[string]any {
			p := make(map[string]any, len(doc.Props)+2)
			for k, v := range doc.Props {
				p[k] = v
			}
			p["content"] = content
			p["is_generating"] = generating
			return p
		}
		var content string
		for i, para := range strings.Split(out.Text, "\n\n") {
			if i > 0 {
				content += "\n\n"
			}
			content += para
			ui.Push(ctx, ui.Event{ID: doc.ID, Name: "writer", Props: props(content, true)}.ForMessage(last.ID))
		}
		ui.Push(ctx, ui.Event{ID: doc.ID, Name: "writer", Props: props(out.Text, false)}.ForMessage(last.ID))
		return graph.Continue(nil)
	})

	suggestions := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		history := Messages.Get(s)
		last, ok := lastMessage(history)
		if !ok || len(last.ToolCalls) == 0 {
			return graph.Continue(nil)
		}
		var results []model.Message
		for _, tc := range last.ToolCalls {
			if tc.ID != "" {
				results = append(results, model.ToolResult(tc.ID, "Finished"))
			}
		}
		convo := append(append([]model.Message(nil), history...), results...)
		out, err := m.Chat(ctx, convo, nil)
		if err != nil {
			return graph.Fail(err)
		}
		return graph.Continue(Messages.Set(append(results, deps.reply(out))))
	})

	return graph.NewBuilder(WriterAgent, writerSchema).
		AddNode("prepare", prepare).
		AddNode("writer", write).
		AddNode("suggestions", suggestions).
		AddEdge(graph.Start, "prepare").
		AddEdge("prepare", "writer").
		AddEdge("writer", "suggestions").
		Compile()
}

// selectedText reads context.writer.selected.
func selectedText(s graph.State) string {
	w, _ := Context.Get(s)["writer"].(map[string]any)
	sel, _ := w["selected"].(string)
	return sel
}

// lastComponent finds the latest event named name attached to messageID.
func lastComponent(events []ui.Event, name, messageID string) (ui.Event, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Name == name && events[i].MessageID() == messageID {
			return events[i], true
		}
	}
	return ui.Event{}, false
}
