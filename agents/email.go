package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
)

// Email is a drafted message awaiting review.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`
}

// Review actions a human may take on a drafted email.
const (
	ReviewAccept   = "accept"
	ReviewEdit     = "edit"
	ReviewRespond  = "response"
	ReviewIgnore   = "ignore"
	defaultSender  = "user@example.com"
	reviewQuestion = "Please review the email and choose an action: Accept, Edit, Respond, or Ignore"
)

// HumanResponse is the resume input of the email agent's review pause.
// Content carries feedback for "response" and the replacement body for "edit".
type HumanResponse struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

var (
	EmailDraft       = graph.ReplaceField[*Email]("email")
	HumanResponseKey = graph.ReplaceField[*HumanResponse]("human_response")
)

var emailSchema = graph.MustSchema(EmailAgent, Messages, EmailDraft, HumanResponseKey)

const emailPrompt = `You are an AI assistant that helps users write emails.
Extract the recipient email address, subject, and body content from the user's request.
If any information is missing, ask the user to provide it.`

var emailTool = model.ToolSpec{
	Name:        "draft_email",
	Description: "Draft an email from the user's request.",
	Schema: objectSchema(map[string]any{
		"to":      stringProp("Recipient email address"),
		"subject": stringProp("Email subject"),
		"body":    stringProp("Email body content"),
	}, "to", "subject", "body"),
}

// NewEmail compiles the email agent. It drafts an email, pauses for review
// and then sends, rewrites or drops it according to the human's answer.
func NewEmail(deps Deps) (*graph.CompiledGraph, error) {
	deps = deps.withDefaults()
	m := deps.modelFor(EmailAgent)

	write := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		args, out, err := model.Extract(ctx, m, withSystem(emailPrompt, Messages.Get(s)), emailTool)
		if errors.Is(err, model.ErrNoToolCall) {
			// The model is asking for the missing details.
			return graph.Continue(Messages.Set(toList(deps.say(out.Text))))
		}
		if err != nil {
			return graph.Fail(err)
		}
		var email Email
		if err := decodeArgs(args, &email); err != nil {
			return graph.Fail(fmt.Errorf("decode email: %w", err))
		}
		email.From = defaultSender
		return graph.Continue(graph.Updates(
			EmailDraft.Set(&email),
			Messages.Set(toList(deps.say(fmt.Sprintf("I've drafted an email to %s with subject '%s'.", email.To, email.Subject)))),
		))
	})

	review := graph.NodeFunc(func(_ context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		email := EmailDraft.Get(s)
		if email == nil {
			return graph.Continue(nil)
		}
		return graph.Pause(email, graph.Updates(
			HumanResponseKey.Clear(),
			Messages.Set(toList(deps.say(reviewQuestion))),
		))
	})

	rewrite := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		email := *EmailDraft.Get(s)
		feedback := ""
		if hr := HumanResponseKey.Get(s); hr != nil {
			feedback = hr.Content
		}
		out, err := m.Chat(ctx, []model.Message{
			model.User("Please rewrite this email based on the feedback: " + feedback),
			model.User(fmt.Sprintf("Original email: To: %s, Subject: %s, Body: %s", email.To, email.Subject, email.Body)),
		}, nil)
		if err != nil {
			return graph.Fail(err)
		}
		email.Body = out.Text
		return graph.Continue(graph.Updates(
			EmailDraft.Set(&email),
			Messages.Set(toList(deps.say("I've rewritten the email based on your feedback."))),
		))
	})

	send := graph.NodeFunc(func(_ context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		email := *EmailDraft.Get(s)
		if hr := HumanResponseKey.Get(s); hr != nil && hr.Type == ReviewEdit && hr.Content != "" {
			email.Body = hr.Content
		}
		return graph.Continue(graph.Updates(
			EmailDraft.Set(&email),
			Messages.Set(toList(deps.say(fmt.Sprintf("Email sent successfully to %s with subject '%s'", email.To, email.Subject)))),
		))
	})

	return graph.NewBuilder(EmailAgent, emailSchema).
		AddNode("writeEmail", write).
		AddNode("interrupt", review, graph.WithResumeField(HumanResponseKey)).
		AddNode("rewriteEmail", rewrite).
		AddNode("sendEmail", send).
		AddEdge(graph.Start, "writeEmail").
		AddConditionalEdges("writeEmail", routeAfterWriting, "interrupt", graph.End).
		AddConditionalEdges("interrupt", routeAfterReview, "sendEmail", "rewriteEmail", graph.End).
		AddEdge("rewriteEmail", "interrupt").
		AddEdge("sendEmail", graph.End).
		Compile()
}

func routeAfterWriting(s graph.State, _ graph.Config) string {
	if EmailDraft.Get(s) == nil {
		return graph.End
	}
	return "interrupt"
}

// routeAfterReview ends the conversation unless the human accepted, edited or
// commented on the draft. Unknown actions are treated like ignore.
func routeAfterReview(s graph.State, _ graph.Config) string {
	hr := HumanResponseKey.Get(s)
	if hr == nil {
		return graph.End
	}
	switch hr.Type {
	case ReviewRespond:
		return "rewriteEmail"
	case ReviewAccept, ReviewEdit:
		return "sendEmail"
	default:
		return graph.End
	}
}
