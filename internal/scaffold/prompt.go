package scaffold

import "github.com/orc-engine/orc/internal/docs"

// buildInitPrompt constructs the full prompt for AI-powered init.
// The projectContext string is the rendered output of contextgather.Render().
func buildInitPrompt(projectContext string) string {
	return initPromptPrefix + docs.SchemaReference() + initPromptMiddle + projectContext + initPromptSuffix
}

const initPromptPrefix = `You are generating an orc workflow template for a software project. orc is a deterministic multi-phase AI orchestration engine that runs workflows as a state machine, threading artifacts between phases.

Your job: analyze the project context below and generate a tailored workflow template.

## orc Template Schema Reference

`

const initPromptMiddle = `

## Example Templates

### Example 1: Go backend service

` + "```" + `yaml file=.orc/templates/default.yaml
name: go-service-workflow
max_iterations: 3
iteration_behavior: auto_iterate
failure_behavior: pause_notify
budget_scope: execution

phases:
  - id: plan
    name: Plan
    role: planner
    order: 1
    provider_config:
      provider_type: cli_tool
      model_name: opus
    prompt_template: |
      Task: {task_description}
      Project: {project_path}
      Explore the codebase and write an implementation plan.
    output_artifact_type: implementation_plan
    success_pattern: ""

  - id: implement
    name: Implement
    role: implementer
    order: 2
    provider_config:
      provider_type: cli_tool
      model_name: opus
    prompt_template: |
      Plan: {artifact:plan}
      Implement the plan in {project_path}. Run "go build ./..." and
      "go test ./..." before finishing, and report any remaining failures.
    output_artifact_type: code_diff
    can_iterate: true
    max_retries: 2
    success_pattern: "/no issues found"

  - id: review
    name: Review
    role: reviewer_functional
    order: 3
    provider_config:
      provider_type: cli_tool
      model_name: sonnet
    prompt_template: |
      Review this diff for correctness and idiomatic Go style:
      {artifact:implement}
    output_artifact_type: review_report
    can_skip: true
` + "```" + `

### Example 2: Node.js / TypeScript project

` + "```" + `yaml file=.orc/templates/default.yaml
name: ts-app-workflow
max_iterations: 3
iteration_behavior: auto_iterate
failure_behavior: pause_notify
budget_scope: execution

phases:
  - id: plan
    name: Plan
    role: planner
    order: 1
    provider_config:
      provider_type: cli_tool
      model_name: opus
    prompt_template: |
      Task: {task_description}
      Project: {project_path}
      Explore the codebase and write an implementation plan.
    output_artifact_type: implementation_plan

  - id: implement
    name: Implement
    role: implementer
    order: 2
    provider_config:
      provider_type: cli_tool
      model_name: opus
    prompt_template: |
      Plan: {artifact:plan}
      Implement the plan in {project_path}. Run "npm test" before
      finishing and report any remaining failures.
    output_artifact_type: code_diff
    can_iterate: true
    max_retries: 2
    success_pattern: "/no issues found"

  - id: review
    name: Review
    role: reviewer_functional
    order: 3
    provider_config:
      provider_type: cli_tool
      model_name: sonnet
    prompt_template: |
      Review this diff for correctness: {artifact:implement}
    output_artifact_type: review_report
    can_skip: true
` + "```" + `

### Example 3: Python project

` + "```" + `yaml file=.orc/templates/default.yaml
name: python-project-workflow
max_iterations: 3
iteration_behavior: auto_iterate
failure_behavior: pause_notify
budget_scope: execution

phases:
  - id: plan
    name: Plan
    role: planner
    order: 1
    provider_config:
      provider_type: cli_tool
      model_name: opus
    prompt_template: |
      Task: {task_description}
      Project: {project_path}
      Explore the codebase and write an implementation plan.
    output_artifact_type: implementation_plan

  - id: implement
    name: Implement
    role: implementer
    order: 2
    provider_config:
      provider_type: cli_tool
      model_name: opus
    prompt_template: |
      Plan: {artifact:plan}
      Implement the plan in {project_path}. Run "pytest" before
      finishing and report any remaining failures.
    output_artifact_type: code_diff
    can_iterate: true
    max_retries: 2
    success_pattern: "/no issues found"

  - id: review
    name: Review
    role: reviewer_functional
    order: 3
    provider_config:
      provider_type: cli_tool
      model_name: sonnet
    prompt_template: |
      Review this diff for correctness: {artifact:implement}
    output_artifact_type: review_report
    can_skip: true
` + "```" + `

## Project Context

`

const initPromptSuffix = `

## Instructions

Based on the project context above, generate a complete orc workflow
template. Follow this default phase shape and adapt it to the project:

  - **plan** (planner) — Analyze the task and produce an implementation_plan.
  - **implement** (implementer) — Implement the plan, can_iterate: true, a
    success_pattern that fails the phase back into the iteration loop if
    the agent reports unresolved issues, and max_retries: 2.
  - **review** (reviewer_functional) — Review the diff, can_skip: true.

If the project has a dedicated test command (go test, npm test, pytest,
make test), mention it in the implement phase's prompt_template so the
agent runs it before finishing.

Use cli_tool as the provider_type for every phase unless the project
context suggests a reason to call a hosted API directly, and opus as the
model_name for planning/implementation phases, sonnet for review phases.

## Output Format

Produce ONLY ONE fenced code block, annotated with its path:

` + "```" + `yaml file=.orc/templates/default.yaml
<template content>
` + "```" + `

No explanation or text outside the code block.
`

const retryFeedback = `

IMPORTANT: Your previous attempt failed with this error: %v

Try again. Output ONLY ONE fenced code block with the file=.orc/templates/default.yaml annotation, containing a valid workflow template.`
