package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
	"github.com/dshills/langgraph-agents/graph/ui"
)

// StepsCompleted is the open code agent's final message once every plan
// item has been executed.
const StepsCompleted = "All steps have been successfully completed!"

// PlanItem is one step of a code generation plan.
type PlanItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Code        string `json:"code,omitempty"`
}

var (
	Plan           = graph.ReplaceField[[]PlanItem]("plan")
	CurrentStep    = graph.ReplaceField[int]("current_step")
	CompletedSteps = graph.ReplaceField[[]int]("completed_steps")
)

var openCodeSchema = graph.MustSchema(OpenCode, Messages, Timestamp, Plan, CurrentStep, CompletedSteps)

const plannerPrompt = `You are a code generation assistant. Create a detailed plan for building a React TODO app.
Break down the task into specific, actionable steps that can be implemented one by one.
Each step should be clear and focused on a single aspect of the application.`

var planTool = model.ToolSpec{
	Name:        "plan",
	Description: "Record the ordered implementation plan.",
	Schema: objectSchema(map[string]any{
		"steps": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"title":       stringProp("Short name of the step"),
				"description": stringProp("What the step implements"),
				"code":        stringProp("The code the step adds"),
			}, "title", "description"),
		},
	}, "steps"),
}

// defaultPlan is used when the model answers without a plan.
var defaultPlan = []PlanItem{
	{ID: 1, Title: "Set up React project structure", Description: "Initialize a new React project with necessary dependencies",
		Code: "npx create-react-app todo-app\ncd todo-app\nnpm install"},
	{ID: 2, Title: "Create Todo component", Description: "Build the main Todo component with state management",
		Code: "import React, { useState } from 'react';\n\nconst Todo = () => {\n  const [todos, setTodos] = useState([]);\n  const [inputValue, setInputValue] = useState('');\n\n  return (\n    <div className=\"todo-app\">\n      <h1>Todo App</h1>\n    </div>\n  );\n};\n\nexport default Todo;"},
	{ID: 3, Title: "Add todo functionality", Description: "Implement add, delete, and toggle todo functionality",
		Code: "const addTodo = () => {\n  if (inputValue.trim()) {\n    setTodos([...todos, { id: Date.now(), text: inputValue, completed: false }]);\n    setInputValue('');\n  }\n};"},
	{ID: 4, Title: "Add styling", Description: "Style the todo app with CSS",
		Code: ".todo-app {\n  max-width: 600px;\n  margin: 0 auto;\n  padding: 20px;\n}"},
}

// NewOpenCode compiles the code generation agent. The planner produces a
// plan and the executor proposes one file change per step. Without full
// write access the graph stops after each proposal; the next user turn
// continues with the following step.
func NewOpenCode(deps Deps) (*graph.CompiledGraph, error) {
	deps = deps.withDefaults()
	m := deps.modelFor(OpenCode)

	planner := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		plan, done := Plan.Get(s), CompletedSteps.Get(s)
		last, _ := lastMessage(Messages.Get(s))
		finished := len(plan) > 0 && len(done) >= len(plan)
		// A finished plan is replaced only after the completion message
		// has been delivered.
		reported, _ := model.LastOfRole(Messages.Get(s), model.RoleAssistant)
		replan := finished && last.Role == model.RoleUser && reported.Content == StepsCompleted
		if len(plan) > 0 && !replan {
			return graph.Continue(CurrentStep.Set(len(done)))
		}

		args, out, err := model.Extract(ctx, m, withSystem(plannerPrompt, Messages.Get(s)), planTool)
		if err != nil && !errors.Is(err, model.ErrNoToolCall) {
			return graph.Fail(err)
		}
		plan = parsePlan(args)
		text := out.Text
		if text == "" {
			text = describePlan(plan)
		}
		return graph.Continue(graph.Updates(
			Plan.Set(plan),
			CurrentStep.Set(0),
			CompletedSteps.Clear(),
			Messages.Set(toList(deps.say(text))),
		))
	})

	executor := graph.NodeFunc(func(ctx context.Context, s graph.State, cfg graph.Config) graph.NodeResult {
		plan, step := Plan.Get(s), CurrentStep.Get(s)
		if step >= len(plan) {
			return graph.Continue(Messages.Set(toList(deps.say(StepsCompleted))))
		}

		item := plan[step]
		change := item.Code
		if change == "" {
			change = fmt.Sprintf("// Step %d code content\n// %s\n\n// Mock generated code for this step", step+1, item.Title)
		}
		call := model.ToolCall{
			ID:   deps.NewID(),
			Name: "update_file",
			Input: map[string]any{
				"new_file_content":   change,
				"executed_plan_item": item.Title,
			},
		}
		proposal := model.Message{ID: deps.NewID(), Role: model.RoleAssistant, ToolCalls: []model.ToolCall{call}}

		fullAccess := cfg.Permissions.FullWriteAccess
		ui.Push(ctx, ui.Event{
			Name: "proposed-change",
			Props: map[string]any{
				"toolCallId":      call.ID,
				"change":          change,
				"planItem":        item.Title,
				"fullWriteAccess": fullAccess,
			},
		}.ForMessage(proposal.ID))

		result := fmt.Sprintf("Proposed step %d for review.", step+1)
		if fullAccess {
			result = fmt.Sprintf("Applied step %d.", step+1)
		}
		done := append(append([]int(nil), CompletedSteps.Get(s)...), step)
		return graph.Continue(graph.Updates(
			Messages.Set(toList(proposal, model.ToolResult(call.ID, result))),
			CompletedSteps.Set(done),
			Timestamp.Set(deps.Now()),
		))
	})

	return graph.NewBuilder(OpenCode, openCodeSchema).
		AddNode("planner", planner).
		AddNode("executor", executor).
		AddEdge(graph.Start, "planner").
		AddEdge("planner", "executor").
		AddConditionalEdges("executor", conditionallyEnd, "planner", graph.End).
		Compile()
}

// conditionallyEnd loops back to the planner only with full write access and
// while steps remain.
func conditionallyEnd(s graph.State, cfg graph.Config) string {
	last, ok := model.LastOfRole(Messages.Get(s), model.RoleAssistant)
	if (ok && last.Content == StepsCompleted) || !cfg.Permissions.FullWriteAccess {
		return graph.End
	}
	return "planner"
}

func parsePlan(args map[string]any) []PlanItem {
	var parsed struct {
		Steps []PlanItem `json:"steps"`
	}
	if args == nil || decodeArgs(args, &parsed) != nil || len(parsed.Steps) == 0 {
		return append([]PlanItem(nil), defaultPlan...)
	}
	for i := range parsed.Steps {
		parsed.Steps[i].ID = i + 1
	}
	return parsed.Steps
}

func describePlan(plan []PlanItem) string {
	var b strings.Builder
	b.WriteString("Here is the plan:")
	for _, item := range plan {
		fmt.Fprintf(&b, "\n%d. %s", item.ID, item.Title)
	}
	return b.String()
}
